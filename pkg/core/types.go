package core

// SkippedAnswer is the sentinel stored when an answer was too short to
// transcribe or the participant gave no usable audio.
const SkippedAnswer = "[SKIPPED]"

// ConversationTurn is one question/answer exchange, in the shape the agents
// exchange with each other and with external callers.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionType distinguishes the fixed opening question from generated ones.
type QuestionType string

const (
	QuestionSeed    QuestionType = "seed"
	QuestionDynamic QuestionType = "dynamic"
)

// QuestionRequest asks the question agent for the next question to pose.
type QuestionRequest struct {
	SessionID           string             `json:"sessionId"`
	StudyID             string             `json:"studyId"`
	QuestionID          string             `json:"questionId,omitempty"`
	ParticipantID       string             `json:"participantId"`
	ConversationHistory []ConversationTurn `json:"conversationHistory"`
	GoodQuestions       []string           `json:"goodQuestions,omitempty"`
	BadQuestions        []string           `json:"badQuestions,omitempty"`
}

// Question is the question agent's answer.
type Question struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Rationale string       `json:"rationale,omitempty"`
}

// QualityRequest asks the quality agent to score one Q&A pair.
type QualityRequest struct {
	SessionID           string             `json:"sessionId"`
	TurnID              string             `json:"turnId,omitempty"`
	QuestionText        string             `json:"questionText"`
	AnswerText          string             `json:"answerText"`
	ConversationHistory []ConversationTurn `json:"conversationHistory,omitempty"`
}

// QualityScores are 0-100 per-dimension scores for a Q&A pair.
type QualityScores struct {
	Overall       int      `json:"overall_score"`
	Relevance     int      `json:"relevance_score"`
	Depth         int      `json:"depth_score"`
	Clarity       int      `json:"clarity_score"`
	Actionability int      `json:"actionability_score"`
	Flags         []string `json:"flags"`
	Rationale     string   `json:"rationale,omitempty"`
}

// SpeechAudio is one complete synthesized audio payload.
type SpeechAudio struct {
	Data   []byte
	Format string
}
