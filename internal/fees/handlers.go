package fees

import (
	"net/http"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/pkg/otc"
)

type Service struct {
	reader otc.Reader
}

func NewService(reader otc.Reader) *Service {
	return &Service{
		reader: reader,
	}
}

// Withdrawals returns fee withdrawals, newest first
func (s *Service) Withdrawals(w http.ResponseWriter, r *http.Request) {
	limit, offset := com.ParsePagination(r)

	withdrawals, err := s.reader.ListFeeWithdrawals(r.Context(), otc.Page{Limit: limit, Offset: offset})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	body := make([]*otc.FeeWithdrawalSnapshot, 0, len(withdrawals))
	for _, fw := range withdrawals {
		body = append(body, fw.Snapshot())
	}

	err = com.BodyMultiple(w, body, com.Pagination{Limit: limit, Offset: offset, Total: offset + len(body)})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Recipients returns the history of fee recipient changes, newest first
func (s *Service) Recipients(w http.ResponseWriter, r *http.Request) {
	limit, offset := com.ParsePagination(r)

	updates, err := s.reader.ListFeeRecipientUpdates(r.Context(), otc.Page{Limit: limit, Offset: offset})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	body := make([]*otc.FeeRecipientUpdateSnapshot, 0, len(updates))
	for _, u := range updates {
		body = append(body, u.Snapshot())
	}

	err = com.BodyMultiple(w, body, com.Pagination{Limit: limit, Offset: offset, Total: offset + len(body)})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
