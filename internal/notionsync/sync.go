package notionsync

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/jomei/notionapi"
)

// SyncStats counts what a sync did.
type SyncStats struct {
	Created int
	Updated int
	Failed  int
}

// SyncSuggestions mirrors records into the Notion database, updating the page
// whose title matches the suggestion id or creating one. Failures on single
// pages are logged and counted, not returned.
func SyncSuggestions(ctx context.Context, notionClient NotionService, notionDBID, userID string, records []session.SuggestionRecord, dryRun bool) (SyncStats, error) {
	log := logger.FromContext(ctx).With().Str("user_id", userID).Logger()
	var stats SyncStats

	log.Info().
		Int("suggestions", len(records)).
		Bool("dry_run", dryRun).
		Msg("Starting suggestions sync to Notion")

	for _, rec := range records {
		if rec.UserID != userID {
			return stats, fmt.Errorf("SyncSuggestions: suggestion %d: %w", rec.ID, session.ErrForbidden)
		}
		id := strconv.FormatInt(rec.ID, 10)

		pageID, err := findSuggestionPage(ctx, notionClient, notionDBID, id)
		if err != nil {
			log.Warn().Err(err).Str("suggestion_id", id).Msg("Failed to look up Notion page")
			stats.Failed++
			continue
		}

		if dryRun {
			action := "create"
			if pageID != "" {
				action = "update"
			}
			log.Info().
				Str("suggestion_id", id).
				Str("action", action).
				Msg("[DRY RUN] Would sync suggestion to Notion")
			if pageID != "" {
				stats.Updated++
			} else {
				stats.Created++
			}
			continue
		}

		props := SuggestionToNotionProperties(rec)
		if pageID != "" {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("suggestion_id", id).Str("page_id", pageID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("suggestion_id", id).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().Str("suggestion_id", id).Str("page_id", string(page.ID)).Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Msg("Suggestions sync completed")

	return stats, nil
}

// findSuggestionPage returns the id of the page titled suggestionID, or ""
// when there is none.
func findSuggestionPage(ctx context.Context, notionClient NotionService, databaseID, suggestionID string) (string, error) {
	resp, err := notionClient.QueryDatabase(ctx, databaseID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: propSuggestionID,
			RichText: &notionapi.TextFilterCondition{Equals: suggestionID},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", fmt.Errorf("findSuggestionPage: %w", err)
	}
	for _, page := range resp.Results {
		if extractSuggestionID(page) == suggestionID {
			return string(page.ID), nil
		}
	}
	return "", nil
}

// Mirror adapts SyncSuggestions to the export job.
type Mirror struct {
	client NotionService
	dbID   string
}

// NewMirror creates a Mirror writing to the given database.
func NewMirror(client NotionService, databaseID string) *Mirror {
	return &Mirror{client: client, dbID: databaseID}
}

// MirrorSuggestions syncs records and fails when any page could not be
// written, so the caller can retry. Retrying is safe because pages are keyed
// by suggestion id.
func (m *Mirror) MirrorSuggestions(ctx context.Context, userID string, records []session.SuggestionRecord) error {
	stats, err := SyncSuggestions(ctx, m.client, m.dbID, userID, records, false)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("MirrorSuggestions: %d of %d pages failed", stats.Failed, len(records))
	}
	return nil
}
