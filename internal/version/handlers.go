package version

import (
	"context"
	"errors"
	"net/http"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/pkg/otc"
)

const Version = "0.1.0"

type CursorReader interface {
	GetCursor(ctx context.Context, contract string) (*otc.Cursor, error)
}

type Service struct {
	cursors  CursorReader
	contract string
}

func NewService(cursors CursorReader, contract string) *Service {
	return &Service{
		cursors:  cursors,
		contract: com.LowerAddress(contract),
	}
}

type response struct {
	Version string `json:"version"`
}

// Current returns the current version of the API
func (s *Service) Current(w http.ResponseWriter, r *http.Request) {
	err := com.Body(w, &response{Version: Version}, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

type status struct {
	Version string      `json:"version"`
	Cursor  *otc.Cursor `json:"cursor"`
}

// Status returns how far the contract has been indexed, the cursor is null before the first sync
func (s *Service) Status(w http.ResponseWriter, r *http.Request) {
	c, err := s.cursors.GetCursor(r.Context(), s.contract)
	if err != nil && !errors.Is(err, otc.ErrNotFound) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	err = com.Body(w, &status{Version: Version, Cursor: c}, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
