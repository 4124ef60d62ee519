package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
)

// timeLayout keeps created_at text columns lexically ordered by time.
const (
	timeLayout = time.RFC3339
	dateLayout = "2006-01-02"
)

// UpsertPosts inserts posts keyed by post_id and returns how many rows were
// genuinely new. Re-inserting an already-stored post is a no-op, so the
// operation is safe for overlapping fetch windows.
func (s *Store) UpsertPosts(ctx context.Context, posts []models.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.ErrorContext(ctx, "Failed to roll back tx",
				"error", err,
				"operation", "UpsertPosts")
		}
	}()

	query := `insert or ignore into posts
	(post_id, account_handle, author_name, created_at, body, url,
	likes, retweets, replies, views, is_retweet, is_reply, media_urls)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close statement",
				"error", err,
				"operation", "UpsertPosts")
		}
	}()

	inserted := 0
	for _, post := range posts {
		mediaURLs, err := json.Marshal(post.MediaURLs)
		if err != nil {
			return 0, fmt.Errorf("encode media URLs: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			post.PostID,
			post.AccountHandle,
			post.AuthorName,
			post.CreatedAt.UTC().Format(timeLayout),
			post.Body,
			post.URL,
			post.Likes,
			post.Retweets,
			post.Replies,
			post.Views,
			post.IsRetweet,
			post.IsReply,
			string(mediaURLs),
		)
		if err != nil {
			return 0, fmt.Errorf("insert post %s: %w", post.PostID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}

// PostsBetween returns posts with start <= created_at < end ordered by
// created_at ascending. An empty handle matches all accounts.
func (s *Store) PostsBetween(
	ctx context.Context,
	start time.Time,
	end time.Time,
	handle string,
) ([]models.Post, error) {
	query := `select post_id, account_handle, author_name, created_at, body, url,
	likes, retweets, replies, views, is_retweet, is_reply, media_urls
	from posts
	where created_at >= ? and created_at < ?`

	args := []any{
		start.UTC().Format(timeLayout),
		end.UTC().Format(timeLayout),
	}
	if handle != "" {
		query += " and account_handle = ?"
		args = append(args, handle)
	}
	query += " order by created_at asc, post_id asc"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "PostsBetween")
		}
	}()

	var posts []models.Post
	for rows.Next() {
		var (
			p         models.Post
			createdAt string
			mediaURLs string
		)
		if err = rows.Scan(
			&p.PostID,
			&p.AccountHandle,
			&p.AuthorName,
			&createdAt,
			&p.Body,
			&p.URL,
			&p.Likes,
			&p.Retweets,
			&p.Replies,
			&p.Views,
			&p.IsRetweet,
			&p.IsReply,
			&mediaURLs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		p.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of post %s: %w", p.PostID, err)
		}

		if err = json.Unmarshal([]byte(mediaURLs), &p.MediaURLs); err != nil {
			return nil, fmt.Errorf("decode media URLs of post %s: %w", p.PostID, err)
		}

		posts = append(posts, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return posts, nil
}

// LastPostTime returns the newest created_at stored for the handle. The bool
// reports whether any post exists.
func (s *Store) LastPostTime(
	ctx context.Context,
	handle string,
) (time.Time, bool, error) {
	query := "select max(created_at) from posts where account_handle = ?"

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, query, handle).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to execute query: %w", err)
	}

	if !last.Valid {
		return time.Time{}, false, nil
	}

	t, err := time.Parse(timeLayout, last.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last post time: %w", err)
	}

	return t, true, nil
}

// UpsertSummary stores the summary for its report date, replacing any
// previous summary for the same date.
func (s *Store) UpsertSummary(ctx context.Context, summary *models.Summary) error {
	insights, err := json.Marshal(summary.Insights)
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}

	query := `insert into summaries
	(report_date, generated_at, account_count, post_count, analysis, insights)
	values (?, ?, ?, ?, ?, ?)
	on conflict (report_date) do update
	set generated_at = excluded.generated_at,
	account_count = excluded.account_count,
	post_count = excluded.post_count,
	analysis = excluded.analysis,
	insights = excluded.insights`

	_, err = s.db.ExecContext(ctx, query,
		summary.Date.UTC().Format(dateLayout),
		summary.GeneratedAt.UTC().Format(timeLayout),
		summary.AccountCount,
		summary.PostCount,
		summary.Analysis,
		string(insights),
	)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}

	return nil
}

// SummaryByDate returns the stored summary for the date, or nil when none
// exists.
func (s *Store) SummaryByDate(ctx context.Context, date time.Time) (*models.Summary, error) {
	query := `select report_date, generated_at, account_count, post_count, analysis, insights
	from summaries
	where report_date = ?`

	row := s.db.QueryRowContext(ctx, query, date.UTC().Format(dateLayout))

	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// RecentSummaries returns up to limit summaries, newest report date first.
func (s *Store) RecentSummaries(ctx context.Context, limit int) ([]models.Summary, error) {
	query := `select report_date, generated_at, account_count, post_count, analysis, insights
	from summaries
	order by report_date desc
	limit ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "RecentSummaries")
		}
	}()

	var summaries []models.Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, *summary)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return summaries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*models.Summary, error) {
	var (
		summary     models.Summary
		reportDate  string
		generatedAt string
		insights    string
	)
	if err := row.Scan(
		&reportDate,
		&generatedAt,
		&summary.AccountCount,
		&summary.PostCount,
		&summary.Analysis,
		&insights,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	var err error
	summary.Date, err = time.Parse(dateLayout, reportDate)
	if err != nil {
		return nil, fmt.Errorf("parse report date: %w", err)
	}

	summary.GeneratedAt, err = time.Parse(timeLayout, generatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse generated_at: %w", err)
	}

	if err = json.Unmarshal([]byte(insights), &summary.Insights); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}

	return &summary, nil
}
