package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/logger"
	"curation-service/internal/service"
)

// Services groups what the handlers call.
type Services struct {
	Jobs     *service.JobService
	Rescore  *service.RescoreService
	Configs  *service.ConfigService
	Posts    *service.PostService
	Bulk     *service.BulkService
	Search   *service.SearchService
	Settings *service.SettingsService
}

type Handler struct {
	svc Services
	log *logger.Logger
}

func NewHandler(svc Services, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("component", "http")}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	writeErr(w, h.log, err)
}

const maxBodyBytes = 4 << 20

// decodeJSON reads a JSON body into dst. Unknown fields are rejected so typos
// in weight or filter names surface as validation errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid json: " + err.Error())
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.ValidationFields([]apperr.FieldError{{Field: "id", Message: "must be a UUID"}})
	}
	return id, nil
}

// queryReader parses optional query parameters and collects every problem.
type queryReader struct {
	r      *http.Request
	fields []apperr.FieldError
}

func newQueryReader(r *http.Request) *queryReader {
	return &queryReader{r: r}
}

func (q *queryReader) str(name string) string {
	return strings.TrimSpace(q.r.URL.Query().Get(name))
}

func (q *queryReader) list(name string) []string {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (q *queryReader) intVal(name string) int {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fields = append(q.fields, apperr.FieldError{Field: name, Message: "must be an integer"})
	}
	return v
}

func (q *queryReader) intPtr(name string) *int {
	if q.str(name) == "" {
		return nil
	}
	v := q.intVal(name)
	return &v
}

func (q *queryReader) floatPtr(name string) *float64 {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.fields = append(q.fields, apperr.FieldError{Field: name, Message: "must be a number"})
		return nil
	}
	return &v
}

func (q *queryReader) boolVal(name string) bool {
	raw := q.str(name)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fields = append(q.fields, apperr.FieldError{Field: name, Message: "must be true or false"})
	}
	return v
}

func (q *queryReader) uuids(name string) []uuid.UUID {
	var out []uuid.UUID
	for _, raw := range q.list(name) {
		id, err := uuid.Parse(raw)
		if err != nil {
			q.fields = append(q.fields, apperr.FieldError{Field: name, Message: "must be a comma-separated list of UUIDs"})
			return nil
		}
		out = append(out, id)
	}
	return out
}

func (q *queryReader) err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return apperr.ValidationFields(q.fields)
}
