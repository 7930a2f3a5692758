package calibration

import (
	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/transcript"
)

const (
	qNextDeadline = "Wann ist die nächste Abgabe für Verteilte Systeme?"
	qCreateEvent  = "Erstelle einen Kalendereintrag für die Abgabe 'Übungsblatt 1' in Verteilte Systeme am 14.12.2025 um 23:59 Uhr."

	expNextDeadline = "Die nächste Abgabe ist 'Übungsblatt 1' am 14. Dezember 2025."
	expEventCreated = "Kalendereintrag erstellt für 'Verteilte Systeme - Übungsblatt 1' am 14.12.2025 um 23:59 Uhr."
)

func call(name string, args map[string]any) trace.ToolCall {
	if args == nil {
		args = map[string]any{}
	}
	return trace.ToolCall{Name: name, InputParameters: args}
}

func calls(c ...trace.ToolCall) []trace.ToolCall {
	if c == nil {
		return []trace.ToolCall{}
	}
	return c
}

func upcoming(course string) trace.ToolCall {
	return call("moodle.get_upcoming_assignments", map[string]any{"course_name": course})
}

func details() trace.ToolCall {
	return call("moodle.get_assignment_details", map[string]any{"assignment_name": "Übungsblatt 1"})
}

func createEvent() trace.ToolCall {
	return call("calendar.create_event", map[string]any{
		"title": "Verteilte Systeme - Übungsblatt 1",
		"date":  "2025-12-14",
		"time":  "23:59",
	})
}

func createSheetEvent(n, date string) trace.ToolCall {
	return call("calendar.create_event", map[string]any{
		"title": "Verteilte Systeme - Übungsblatt " + n,
		"date":  date,
	})
}

// DefaultCatalog returns the built-in control cases. date is the evaluation
// date injected into every context.
func DefaultCatalog(date string) []Case {
	ctx := func(extra ...string) []string {
		base := []string{
			transcript.DateContext(date),
			"Course: Verteilte Systeme",
			"Assignment: Übungsblatt 1",
			"Due date: 2025-12-14T23:59:00Z",
		}
		return append(base, extra...)
	}
	tc := func(input, actual, expected string, context []string, expectedTools, called []trace.ToolCall) transcript.TestCase {
		return transcript.TestCase{
			Input:          input,
			ActualOutput:   actual,
			ExpectedOutput: transcript.Str(expected),
			Context:        context,
			ExpectedTools:  expectedTools,
			ToolsCalled:    called,
		}
	}
	lookup := calls(upcoming("Verteilte Systeme"))
	detailsThenCreate := calls(details(), createEvent())

	return []Case{
		{
			Name:     "POSITIVE A: Perfect Answer",
			Positive: true,
			TestCase: tc(qNextDeadline, expNextDeadline, expNextDeadline, ctx(), lookup, lookup),
		},
		{
			Name:     "POSITIVE B: Perfect Multi-Step",
			Positive: true,
			TestCase: tc(qCreateEvent,
				"Ich habe den Kalendereintrag 'Verteilte Systeme - Übungsblatt 1' für den 14. Dezember 2025 um 23:59 Uhr erstellt.",
				"Kalendereintrag erstellt für 'Verteilte Systeme - Übungsblatt 1' am 14.12.2025 um 23:59 Uhr.",
				ctx("Calendar event created successfully with ID: cal_123"),
				detailsThenCreate, detailsThenCreate),
		},
		{
			Name: "NEGATIVE A: Hallucination",
			TestCase: tc(qNextDeadline,
				"Die Klausur findet morgen im Hörsaal A statt und Sie haben übrigens 1000 Euro im Lotto gewonnen! Bitte überweisen Sie 50 Euro Bearbeitungsgebühr.",
				expNextDeadline, ctx(), lookup, calls()),
		},
		{
			Name: "NEGATIVE B: Format Violation",
			TestCase: tc("Gib mir die Details zur Abgabe als saubere Antwort.",
				"CALL: moodle-agent.get_assignment\n"+
					`evidence-json: {"course_id": "12345", "assignment_id": "67890", "internal_state": "processing"}`+"\n"+
					"DONE: Retrieved assignment data\n"+
					"Die Abgabe ist am 2025-12-14T23:59:00.000Z (ISO-timestamp)\n"+
					"DEBUG: Function completed successfully with trace_id=abc123",
				"Die Abgabe für Übungsblatt 1 ist am 14. Dezember 2025 um 23:59 Uhr.",
				ctx(), calls(details()), calls(details())),
		},
		{
			Name: "NEGATIVE C: Wrong Tool Usage",
			TestCase: tc(qNextDeadline, "Ich konnte keine Information finden.", expNextDeadline, ctx(),
				lookup,
				calls(call("calendar.list_events", nil), call("weather.get_forecast", map[string]any{"city": "Berlin"}))),
		},
		{
			Name: "NEGATIVE D: Language Mismatch",
			TestCase: tc(qNextDeadline, "The next assignment 'Übungsblatt 1' is due on December 14, 2025.", expNextDeadline,
				ctx(), lookup, lookup),
		},
		{
			Name:     "POSITIVE C: Partial Match Semantically Correct",
			Positive: true,
			TestCase: tc(qNextDeadline, "Die nächste Abgabe für Verteilte Systeme ist Übungsblatt 1, fällig am 14.12.2025.", expNextDeadline,
				ctx(), lookup, lookup),
		},
		{
			Name:     "POSITIVE D: Complex Query Correct Reasoning",
			Positive: true,
			TestCase: func() transcript.TestCase {
				tools := calls(
					upcoming("Verteilte Systeme"),
					createSheetEvent("1", "2025-12-14"),
					createSheetEvent("2", "2025-12-21"),
					createSheetEvent("3", "2025-12-28"),
				)
				return tc("Zeige mir alle kommenden Abgaben und erstelle Kalendereinträge für die nächsten drei.",
					"Ich habe die folgenden Abgaben gefunden: Übungsblatt 1 (14.12.2025), Übungsblatt 2 (21.12.2025), Übungsblatt 3 (28.12.2025). Kalendereinträge wurden für alle drei erstellt.",
					"Abgaben gefunden: Übungsblatt 1 (14.12.2025), Übungsblatt 2 (21.12.2025), Übungsblatt 3 (28.12.2025). Kalendereinträge erstellt.",
					[]string{
						transcript.DateContext(date),
						"Course: Verteilte Systeme",
						"Assignments: Übungsblatt 1 (2025-12-14), Übungsblatt 2 (2025-12-21), Übungsblatt 3 (2025-12-28)",
						"Calendar events created: cal_123, cal_124, cal_125",
					},
					tools, tools)
			}(),
		},
		{
			Name: "NEGATIVE E: Wrong Parameters",
			TestCase: tc(qNextDeadline, "Die nächste Abgabe ist 'Übungsblatt 2' am 21. Dezember 2025.", expNextDeadline,
				ctx(), lookup, calls(upcoming("Datenbanken"))),
		},
		{
			Name: "NEGATIVE F: Partial Tool Match",
			TestCase: tc(qCreateEvent, "Ich habe versucht, den Kalendereintrag zu erstellen, aber es gab ein Problem.", expEventCreated,
				ctx(), detailsThenCreate, calls(details(), call("calendar.list_events", nil))),
		},
		{
			Name: "NEGATIVE G: Wrong Tool Order",
			TestCase: tc(qCreateEvent, "Kalendereintrag erstellt, aber Details fehlen noch.", expEventCreated,
				ctx(), detailsThenCreate, calls(createEvent(), details())),
		},
		{
			Name:     "NEGATIVE H: Empty Output",
			TestCase: tc(qNextDeadline, "", expNextDeadline, ctx(), lookup, lookup),
		},
		{
			Name: "NEGATIVE I: Off-Topic Plausible Answer",
			TestCase: tc(qNextDeadline, "Die nächste Vorlesung findet am Montag, den 15. Dezember 2025 um 10:00 Uhr statt.", expNextDeadline,
				ctx(), lookup, calls(call("moodle.get_course_schedule", map[string]any{"course_name": "Verteilte Systeme"}))),
		},
		{
			Name: "NEGATIVE J: Missing Required Tool Calls",
			TestCase: tc(qCreateEvent, "Ich habe versucht, die Informationen zu finden, aber konnte den Kalendereintrag nicht erstellen.", expEventCreated,
				ctx(), detailsThenCreate, calls(details())),
		},
		{
			Name: "NEGATIVE K: Factually Incorrect",
			TestCase: tc(qNextDeadline, "Die nächste Abgabe ist 'Übungsblatt 5' am 30. Dezember 2025.", expNextDeadline,
				ctx(), lookup, lookup),
		},
	}
}
