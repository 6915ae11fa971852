package notionsync

import (
	"strconv"
	"time"

	"github.com/dvloznov/dompet/internal/session"
	"github.com/jomei/notionapi"
)

// Property names of the suggestions database.
const (
	propSuggestionID = "Suggestion ID"
	propSuggestion   = "Suggestion"
	propType         = "Type"
	propAgent        = "Agent"
	propRunID        = "Run ID"
	propUser         = "User"
	propOutcome      = "Outcome"
	propImpact       = "Impact (RM)"
	propNotes        = "Outcome Notes"
	propCreated      = "Created"
	propOutcomeDate  = "Outcome Date"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// SuggestionToNotionProperties converts a suggestion record to page properties.
// The suggestion id is the page title and the sync key.
func SuggestionToNotionProperties(rec session.SuggestionRecord) notionapi.Properties {
	props := notionapi.Properties{
		propSuggestionID: notionapi.TitleProperty{Title: richText(strconv.FormatInt(rec.ID, 10))},
		propSuggestion:   notionapi.RichTextProperty{RichText: richText(rec.Suggestion)},
		propType:         notionapi.SelectProperty{Select: notionapi.Option{Name: rec.SuggestionType}},
		propAgent:        notionapi.SelectProperty{Select: notionapi.Option{Name: rec.AgentKey}},
		propRunID:        notionapi.RichTextProperty{RichText: richText(rec.RunID)},
		propUser:         notionapi.RichTextProperty{RichText: richText(rec.UserID)},
	}

	outcome := rec.LatestOutcome
	if outcome == "" {
		outcome = session.OutcomeNone
	}
	props[propOutcome] = notionapi.SelectProperty{Select: notionapi.Option{Name: outcome}}

	if !rec.CreatedAt.IsZero() {
		props[propCreated] = dateProperty(rec.CreatedAt)
	}
	if rec.LatestImpact != nil {
		props[propImpact] = notionapi.NumberProperty{Number: rec.LatestImpact.InexactFloat64()}
	}
	if rec.OutcomeNotes != "" {
		props[propNotes] = notionapi.RichTextProperty{RichText: richText(rec.OutcomeNotes)}
	}
	if rec.OutcomeAt != nil {
		props[propOutcomeDate] = dateProperty(*rec.OutcomeAt)
	}

	return props
}

// extractSuggestionID reads the title of a suggestions page.
// Returns empty string if not found.
func extractSuggestionID(page notionapi.Page) string {
	if prop, ok := page.Properties[propSuggestionID]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok && len(title.Title) > 0 {
			return title.Title[0].PlainText
		}
	}
	return ""
}
