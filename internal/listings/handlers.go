package listings

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/go-chi/chi/v5"
)

type Service struct {
	reader otc.Reader
}

func NewService(reader otc.Reader) *Service {
	return &Service{
		reader: reader,
	}
}

func page(r *http.Request) otc.Page {
	limit, offset := com.ParsePagination(r)
	return otc.Page{Limit: limit, Offset: offset}
}

func pagination(p otc.Page, n int) com.Pagination {
	return com.Pagination{Limit: p.Limit, Offset: p.Offset, Total: p.Offset + n}
}

// address reads an optional address from the query, ok is false when it is malformed
func address(r *http.Request, key string) (string, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return "", true
	}

	if !com.IsHexAddress(v) {
		return "", false
	}

	return com.LowerAddress(v), true
}

func listingID(r *http.Request) (*big.Int, bool) {
	id, err := com.ParseUint256(chi.URLParam(r, "listing_id"))
	if err != nil {
		return nil, false
	}

	return id, true
}

// List godoc
//
//	@Summary		Fetch listings
//	@Description	get listings, newest first, optionally filtered by state, seller and token
//	@Tags			listings
//	@Produce		json
//	@Param			active	query		bool	false	"Only active or inactive listings"
//	@Param			seller	query		string	false	"Seller address"
//	@Param			token	query		string	false	"Token address"
//	@Success		200		{object}	common.Response
//	@Failure		400
//	@Failure		500
//	@Router			/listings [get]
func (s *Service) List(w http.ResponseWriter, r *http.Request) {
	f := otc.ListingFilter{Page: page(r)}

	if q := r.URL.Query().Get("active"); q != "" {
		active, err := strconv.ParseBool(q)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.Active = &active
	}

	var ok bool

	f.Seller, ok = address(r, "seller")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.Token, ok = address(r, "token")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	listings, err := s.reader.ListListings(r.Context(), f)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	body := make([]*otc.ListingSnapshot, 0, len(listings))
	for _, l := range listings {
		body = append(body, l.Snapshot())
	}

	err = com.BodyMultiple(w, body, pagination(f.Page, len(body)))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Get godoc
//
//	@Summary		Fetch a listing
//	@Tags			listings
//	@Produce		json
//	@Param			listing_id	path		string	true	"Listing id"
//	@Success		200			{object}	common.Response
//	@Failure		400
//	@Failure		404
//	@Failure		500
//	@Router			/listings/{listing_id} [get]
func (s *Service) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	l, err := s.reader.GetListing(r.Context(), id)
	if err != nil {
		if errors.Is(err, otc.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	err = com.Body(w, l.Snapshot(), nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Service) executions(w http.ResponseWriter, r *http.Request, f otc.ExecutionFilter) {
	executions, err := s.reader.ListExecutions(r.Context(), f)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	body := make([]*otc.ExecutionSnapshot, 0, len(executions))
	for _, e := range executions {
		body = append(body, e.Snapshot())
	}

	err = com.BodyMultiple(w, body, pagination(f.Page, len(body)))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Service) cancellations(w http.ResponseWriter, r *http.Request, f otc.CancellationFilter) {
	cancellations, err := s.reader.ListCancellations(r.Context(), f)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	body := make([]*otc.CancellationSnapshot, 0, len(cancellations))
	for _, c := range cancellations {
		body = append(body, c.Snapshot())
	}

	err = com.BodyMultiple(w, body, pagination(f.Page, len(body)))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// ListExecutions returns executions, newest first, filtered by buyer and seller
func (s *Service) ListExecutions(w http.ResponseWriter, r *http.Request) {
	f := otc.ExecutionFilter{Page: page(r)}

	var ok bool

	f.Buyer, ok = address(r, "buyer")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.Seller, ok = address(r, "seller")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.executions(w, r, f)
}

// GetExecutions returns the executions of one listing
func (s *Service) GetExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.executions(w, r, otc.ExecutionFilter{Page: page(r), ListingID: id})
}

func (s *Service) ListCancellations(w http.ResponseWriter, r *http.Request) {
	s.cancellations(w, r, otc.CancellationFilter{Page: page(r)})
}

func (s *Service) GetCancellations(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.cancellations(w, r, otc.CancellationFilter{Page: page(r), ListingID: id})
}
