package api

import (
	"prism-board/board"
	"prism-board/domain"
)

const postMoveMaxSize = 64 * 1024

type moveRequest struct {
	domain.Gesture
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type previewRequest struct {
	domain.Gesture
	Hover *domain.Hover `json:"hover,omitempty"`
}

type boardResponse struct {
	board.Snapshot
	Notices []board.Notice `json:"notices,omitempty"`
}

type moveResponse struct {
	IdempotencyKey string         `json:"idempotencyKey"`
	Duplicate      bool           `json:"duplicate,omitempty"`
	Changed        bool           `json:"changed"`
	Board          *boardResponse `json:"board,omitempty"`
}

type previewResponse struct {
	Ordering domain.Ordering `json:"ordering"`
	Changed  bool            `json:"changed"`
}

type summaryResponse struct {
	Today   domain.Date    `json:"today"`
	Buckets domain.Buckets `json:"buckets"`
	Stats   domain.Stats   `json:"stats"`
}
