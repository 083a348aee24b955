package practice

import (
	"time"

	"practice-service/internal/segments"
)

const (
	statusPending   = "pending"
	statusSubmitted = "submitted"
)

// Event types published on the broadcast channel.
const (
	eventSegmentsSaved = "segments.saved"
	eventSubmitted     = "lesson.submitted"
	eventAudioDeleted  = "lesson.audio_deleted"
)

// Lesson is a video lesson a student records practice audio for.
type Lesson struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	VideoURL  string    `json:"videoUrl"`
	Status    string    `json:"status"` // "pending" | "submitted"
	AudioURL  string    `json:"audioUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type createLessonRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	VideoURL string `json:"videoUrl" validate:"omitempty,url"`
}

type uploadRequest struct {
	Data string `json:"data" validate:"required,startswith=data:"`
}

type attachAudioRequest struct {
	AudioURL string `json:"audioUrl" validate:"required"`
}

type segmentInput struct {
	ID        string  `json:"id,omitempty"`
	Label     string  `json:"label"`
	StartTime float64 `json:"start_time" validate:"gte=0"`
	EndTime   float64 `json:"end_time" validate:"gte=0"`
	Position  int     `json:"position"`
}

type saveSegmentsRequest struct {
	Segments []segmentInput `json:"segments" validate:"dive"`
}

type segmentsResponse struct {
	LessonID string             `json:"lessonId"`
	Segments []segments.Segment `json:"segments"`
}
