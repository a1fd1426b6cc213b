package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/book"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/mode"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/request"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/result"
	gen "github.com/kailas-cloud/shelfindex/internal/transport/generated"
	cataloguc "github.com/kailas-cloud/shelfindex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/shelfindex/internal/usecase/health"
)

const (
	defaultMaxUploadBytes = 64 << 20
	multipartMemory       = 8 << 20
)

// Searcher runs search requests.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
	SemanticEnabled() bool
}

// Catalog manages books.
type Catalog interface {
	Create(ctx context.Context, in cataloguc.CreateInput) (book.Book, error)
	Get(ctx context.Context, id int64) (book.Book, error)
	List(ctx context.Context, afterID int64, limit int) ([]book.Book, error)
	Update(ctx context.Context, id int64, in cataloguc.UpdateInput) (book.Book, error)
	Delete(ctx context.Context, id int64) error
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements generated.ServerInterface for the oapi-codegen chi router.
type Server struct {
	gen.Unimplemented
	search         Searcher
	books          Catalog
	health         HealthChecker
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

var _ gen.ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server. books may be nil, in which case the
// book endpoints answer 501. maxUploadBytes <= 0 selects 64 MiB.
func NewServer(
	search Searcher,
	books Catalog,
	health HealthChecker,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		search:         search,
		books:          books,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		payloadTooLargeHandler,
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, gen.ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrBookNotFound, http.StatusNotFound, gen.ErrorResponseCodeBookNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, gen.ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrSemanticDisabled, http.StatusNotImplemented, gen.ErrorResponseCodeSemanticDisabled),
		sentinelHandler(domain.ErrSearchUnavailable,
			http.StatusServiceUnavailable, gen.ErrorResponseCodeSearchUnavailable),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, gen.ErrorResponseCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, gen.ErrorResponseCodeEmbeddingProviderError),
	}
	return s
}

// SearchContext handles GET /search/context.
func (s *Server) SearchContext(w http.ResponseWriter, r *http.Request, params gen.SearchContextParams) {
	s.runSearch(w, r, mode.Context, params.Query, params.Limit)
}

// SearchExpanded handles GET /search/expanded.
func (s *Server) SearchExpanded(w http.ResponseWriter, r *http.Request, params gen.SearchExpandedParams) {
	s.runSearch(w, r, mode.Expanded, params.Query, params.Limit)
}

// SearchSemantic handles GET /search/semantic.
func (s *Server) SearchSemantic(w http.ResponseWriter, r *http.Request, params gen.SearchSemanticParams) {
	if !s.search.SemanticEnabled() {
		s.handleDomainError(w, domain.ErrSemanticDisabled)
		return
	}
	s.runSearch(w, r, mode.Semantic, params.Query, params.Limit)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, m mode.Mode, query *string, limit *int) {
	req, err := request.New(derefString(query), m, derefInt(limit))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]gen.SearchHit, len(results))
	for i := range results {
		items[i] = searchHitToGen(&results[i])
	}
	writeJSON(w, http.StatusOK, gen.SearchResponse{Items: items})
}

// ListBooks handles GET /books.
func (s *Server) ListBooks(w http.ResponseWriter, r *http.Request, params gen.ListBooksParams) {
	if !s.catalogEnabled(w) {
		return
	}
	var after int64
	if params.After != nil {
		after = *params.After
	}
	limit := derefInt(params.Limit)
	if limit <= 0 {
		limit = cataloguc.DefaultListLimit
	}

	books, err := s.books.List(r.Context(), after, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := gen.BookListResponse{Items: make([]gen.Book, len(books))}
	for i := range books {
		resp.Items[i] = bookToGen(&books[i])
	}
	if len(books) > 0 && len(books) >= min(limit, cataloguc.MaxListLimit) {
		next := books[len(books)-1].ID()
		resp.NextCursor = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateBook handles POST /books.
func (s *Server) CreateBook(w http.ResponseWriter, r *http.Request) {
	if !s.catalogEnabled(w) {
		return
	}
	form, err := s.parseBookForm(w, r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	defer form.close()

	in := cataloguc.CreateInput{File: form.file}
	if form.title != nil {
		in.Title = *form.title
	}
	if form.genre != nil {
		in.Genre = *form.genre
	}

	b, err := s.books.Create(r.Context(), in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookToGen(&b))
}

// GetBook handles GET /books/{id}.
func (s *Server) GetBook(w http.ResponseWriter, r *http.Request, id gen.BookId) {
	if !s.catalogEnabled(w) {
		return
	}
	b, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookToGen(&b))
}

// UpdateBook handles PUT /books/{id}.
func (s *Server) UpdateBook(w http.ResponseWriter, r *http.Request, id gen.BookId) {
	if !s.catalogEnabled(w) {
		return
	}
	form, err := s.parseBookForm(w, r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	defer form.close()

	b, err := s.books.Update(r.Context(), id, cataloguc.UpdateInput{
		Title:      form.title,
		Genre:      form.genre,
		File:       form.file,
		RemoveFile: form.removeFile,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookToGen(&b))
}

// DeleteBook handles DELETE /books/{id}.
func (s *Server) DeleteBook(w http.ResponseWriter, r *http.Request, id gen.BookId) {
	if !s.catalogEnabled(w) {
		return
	}
	if err := s.books.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]gen.HealthResponseChecks)
	for k, v := range report.Checks {
		checks[k] = gen.HealthResponseChecks(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, gen.HealthResponse{
		Status: gen.HealthResponseStatus(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// catalogEnabled writes 501 when the deployment runs without a catalog.
func (s *Server) catalogEnabled(w http.ResponseWriter) bool {
	if s.books != nil {
		return true
	}
	writeError(w, http.StatusNotImplemented, gen.ErrorResponseCodeNotImplemented, "book catalog is disabled")
	return false
}

// bookForm holds the multipart fields of a book request. Absent text
// fields stay nil so updates can tell "unchanged" from "cleared".
type bookForm struct {
	title      *string
	genre      *string
	file       *cataloguc.File
	removeFile bool
	closer     multipart.File
}

func (f *bookForm) close() {
	if f.closer != nil {
		_ = f.closer.Close()
	}
}

func (s *Server) parseBookForm(w http.ResponseWriter, r *http.Request) (*bookForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, tooLarge
		}
		return nil, fmt.Errorf("%w: invalid multipart body: %w", domain.ErrInvalidInput, err)
	}

	form := &bookForm{
		title: formValue(r.MultipartForm, "title"),
		genre: formValue(r.MultipartForm, "genre"),
	}
	if v := formValue(r.MultipartForm, "remove_file"); v != nil {
		remove, err := strconv.ParseBool(*v)
		if err != nil {
			return nil, fmt.Errorf("%w: remove_file must be a boolean", domain.ErrInvalidInput)
		}
		form.removeFile = remove
	}

	f, hdr, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, fmt.Errorf("%w: read file: %w", domain.ErrInvalidInput, err)
	default:
		form.closer = f
		form.file = &cataloguc.File{
			Name:        hdr.Filename,
			Size:        hdr.Size,
			ContentType: hdr.Header.Get("Content-Type"),
			Body:        f,
		}
	}
	return form, nil
}

func formValue(form *multipart.Form, key string) *string {
	if form == nil {
		return nil
	}
	vals, ok := form.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code gen.ErrorResponseCode, message string) {
	writeJSON(w, status, gen.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Validation errors carry their own text since it describes the caller's input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrBookNotFound,
		domain.ErrNotFound,
		domain.ErrSemanticDisabled,
		domain.ErrSearchUnavailable,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code gen.ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func payloadTooLargeHandler(w http.ResponseWriter, err error, _ string) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, gen.ErrorResponseCodePayloadTooLarge,
		fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, gen.ErrorResponseCodeInternalError, "internal error")
}

// ParamErrorHandler renders binding failures from the generated router.
func ParamErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, err.Error())
}

func bookToGen(b *book.Book) gen.Book {
	out := gen.Book{
		Id:      b.ID(),
		Title:   b.Title(),
		Genre:   b.Genre(),
		HasFile: b.HasFile(),
	}
	if b.HasFile() {
		ref := b.FileRef()
		out.FileRef = &ref
	}
	return out
}

func searchHitToGen(r *result.Result) gen.SearchHit {
	return gen.SearchHit{
		Id:       r.ID(),
		Score:    r.Score(),
		Category: r.Category(),
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
