package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and verifies it with a ping.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// Ping reports whether the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) SessionDetail(ctx context.Context, sessionID string) (*SessionDetail, error) {
	const q = `
		SELECT s.id, s.study_id, s.participant_id,
		       COALESCE(s.research_question_id::text, ''),
		       s.status, s.started_at, s.completed_at,
		       st.title, st.description, st.interview_config,
		       pt.full_name, pt.age, pt.gender, pt.city, pt.country,
		       pt.language, pt.tags, pt.metadata
		FROM interview_sessions s
		JOIN studies st ON st.id = s.study_id
		JOIN participants pt ON pt.id = s.participant_id
		WHERE s.id = $1`

	var (
		d      SessionDetail
		config []byte
		meta   []byte
	)
	row := p.pool.QueryRow(ctx, q, sessionID)
	err := row.Scan(
		&d.Session.ID, &d.Session.StudyID, &d.Session.ParticipantID,
		&d.Session.ResearchQuestionID,
		&d.Session.Status, &d.Session.StartedAt, &d.Session.CompletedAt,
		&d.Study.Title, &d.Study.Description, &config,
		&d.Participant.FullName, &d.Participant.Age, &d.Participant.Gender,
		&d.Participant.City, &d.Participant.Country,
		&d.Participant.Language, &d.Participant.Tags, &meta,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	d.Study.ID = d.Session.StudyID
	d.Participant.ID = d.Session.ParticipantID
	d.Participant.StudyID = d.Session.StudyID
	d.Study.MaxQuestions = maxQuestionsFromConfig(config)
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &d.Participant.Metadata)
	}
	return &d, nil
}

// maxQuestionsFromConfig reads max_questions out of the study's
// interview_config document. Zero means unset.
func maxQuestionsFromConfig(config []byte) int {
	if len(config) == 0 {
		return 0
	}
	var doc struct {
		MaxQuestions int `json:"max_questions"`
	}
	if err := json.Unmarshal(config, &doc); err != nil {
		return 0
	}
	return doc.MaxQuestions
}

func (p *Postgres) SetSessionResearchQuestion(ctx context.Context, sessionID, questionID string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE interview_sessions SET research_question_id = $2 WHERE id = $1`,
		sessionID, questionID)
	if err != nil {
		return fmt.Errorf("set session research question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CompleteSession(ctx context.Context, sessionID string, at time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE interview_sessions SET status = $2, completed_at = $3 WHERE id = $1`,
		sessionID, StatusCompleted, at)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) InsertTurn(ctx context.Context, turn *Turn) (string, error) {
	id := uuid.NewString()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO qa_turns (id, session_id, question_text, answer_transcript, turn_index)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, turn.SessionID, turn.QuestionText, turn.AnswerTranscript, turn.TurnIndex)
	if err != nil {
		return "", fmt.Errorf("insert turn: %w", err)
	}
	return id, nil
}

func (p *Postgres) TurnsBySession(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, session_id, question_text, answer_transcript, turn_index, created_at
		 FROM qa_turns WHERE session_id = $1 ORDER BY turn_index`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.QuestionText, &t.AnswerTranscript, &t.TurnIndex, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (p *Postgres) AssignedQuestionID(ctx context.Context, participantID string) (string, error) {
	var id string
	err := p.pool.QueryRow(ctx,
		`SELECT research_question_id FROM research_question_assignments
		 WHERE participant_id = $1 ORDER BY created_at LIMIT 1`,
		participantID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup assignment: %w", err)
	}
	return id, nil
}

func (p *Postgres) ResearchQuestion(ctx context.Context, id string) (*ResearchQuestion, error) {
	var rq ResearchQuestion
	err := p.pool.QueryRow(ctx,
		`SELECT id, study_id, root_question, specific_product, demographics,
		        selected_dataset, other_info, other_questions
		 FROM research_questions WHERE id = $1`, id).Scan(
		&rq.ID, &rq.StudyID, &rq.RootQuestion, &rq.SpecificProduct,
		&rq.Demographics, &rq.SelectedDataset, &rq.OtherInfo, &rq.OtherQuestions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load research question: %w", err)
	}
	return &rq, nil
}

func (p *Postgres) StudyQuestions(ctx context.Context, studyID string) ([]StudyQuestion, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, study_id, text, order_index FROM questions
		 WHERE study_id = $1 ORDER BY order_index`, studyID)
	if err != nil {
		return nil, fmt.Errorf("list study questions: %w", err)
	}
	defer rows.Close()

	var qs []StudyQuestion
	for rows.Next() {
		var q StudyQuestion
		if err := rows.Scan(&q.ID, &q.StudyID, &q.Text, &q.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan study question: %w", err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

func (p *Postgres) Participant(ctx context.Context, id string) (*Participant, error) {
	var (
		pt   Participant
		meta []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, study_id, full_name, age, gender, city, country, language, tags, metadata
		 FROM participants WHERE id = $1`, id).Scan(
		&pt.ID, &pt.StudyID, &pt.FullName, &pt.Age, &pt.Gender,
		&pt.City, &pt.Country, &pt.Language, &pt.Tags, &meta)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load participant: %w", err)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &pt.Metadata)
	}
	return &pt, nil
}

func (p *Postgres) Study(ctx context.Context, id string) (*Study, error) {
	var (
		st     Study
		config []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, title, description, interview_config FROM studies WHERE id = $1`,
		id).Scan(&st.ID, &st.Title, &st.Description, &config)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load study: %w", err)
	}
	st.MaxQuestions = maxQuestionsFromConfig(config)
	return &st, nil
}

func (p *Postgres) ParticipantsByStudy(ctx context.Context, studyID string) ([]Participant, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, study_id, full_name, age, gender, city, country, language, tags, metadata
		 FROM participants WHERE study_id = $1 ORDER BY created_at`, studyID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var pts []Participant
	for rows.Next() {
		var (
			pt   Participant
			meta []byte
		)
		if err := rows.Scan(&pt.ID, &pt.StudyID, &pt.FullName, &pt.Age, &pt.Gender,
			&pt.City, &pt.Country, &pt.Language, &pt.Tags, &meta); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &pt.Metadata)
		}
		pts = append(pts, pt)
	}
	return pts, rows.Err()
}

func (p *Postgres) CompletedSessionsByStudy(ctx context.Context, studyID string) ([]Session, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, study_id, participant_id, COALESCE(research_question_id::text, ''),
		        status, started_at, completed_at
		 FROM interview_sessions
		 WHERE study_id = $1 AND status = $2 ORDER BY started_at`,
		studyID, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StudyID, &s.ParticipantID, &s.ResearchQuestionID,
			&s.Status, &s.StartedAt, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (p *Postgres) InsertQualityLabel(ctx context.Context, label *QualityLabel) (string, error) {
	id := uuid.NewString()
	var turnID any
	if label.TurnID != "" {
		turnID = label.TurnID
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO quality_labels
		   (id, session_id, turn_id, overall_score, relevance_score, depth_score,
		    clarity_score, actionability_score, flags, rationale)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, label.SessionID, turnID, label.Overall, label.Relevance, label.Depth,
		label.Clarity, label.Actionability, label.Flags, label.Rationale)
	if err != nil {
		return "", fmt.Errorf("insert quality label: %w", err)
	}
	return id, nil
}

func (p *Postgres) UpsertSessionSummary(ctx context.Context, summary *SessionSummary) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO session_summaries
		   (id, session_id, key_insights, sentiment, themes, notable_quotes, summary_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id) DO UPDATE SET
		   key_insights = EXCLUDED.key_insights,
		   sentiment = EXCLUDED.sentiment,
		   themes = EXCLUDED.themes,
		   notable_quotes = EXCLUDED.notable_quotes,
		   summary_text = EXCLUDED.summary_text`,
		uuid.NewString(), summary.SessionID, summary.KeyInsights, summary.Sentiment,
		summary.Themes, summary.NotableQuotes, summary.SummaryText)
	if err != nil {
		return fmt.Errorf("upsert session summary: %w", err)
	}
	return nil
}

func (p *Postgres) SessionSummariesByStudy(ctx context.Context, studyID string) ([]SessionSummary, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT ss.id, ss.session_id, ss.key_insights, ss.sentiment, ss.themes,
		        ss.notable_quotes, ss.summary_text, ss.created_at
		 FROM session_summaries ss
		 JOIN interview_sessions s ON s.id = ss.session_id
		 WHERE s.study_id = $1 ORDER BY ss.created_at`, studyID)
	if err != nil {
		return nil, fmt.Errorf("list session summaries: %w", err)
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		if err := rows.Scan(&ss.ID, &ss.SessionID, &ss.KeyInsights, &ss.Sentiment,
			&ss.Themes, &ss.NotableQuotes, &ss.SummaryText, &ss.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		summaries = append(summaries, ss)
	}
	return summaries, rows.Err()
}
