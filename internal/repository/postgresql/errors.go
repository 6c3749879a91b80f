package postgresql

import (
	"context"
	"errors"
	"net"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"curation-service/internal/apperr"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// storeErr converts a driver error into an upstream apperr, marking whether a
// retry could help. Errors that already carry a kind pass through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Upstream(op+": store call interrupted", true, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "42"):
			return apperr.Upstream(op+": store schema mismatch ("+pgErr.Code+"), a migration is likely missing", false, err)
		case isTransientClass(pgErr.Code):
			return apperr.Upstream(op+": store temporarily unavailable ("+pgErr.Code+")", true, err)
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return apperr.Upstream(op+": concurrent update conflict", true, err)
		default:
			return apperr.Upstream(op+": store rejected the request ("+pgErr.Code+")", false, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return apperr.Upstream(op+": store unreachable", true, err)
	}
	return apperr.Upstream(op+": store failure", false, err)
}

// isTransientClass covers connection exceptions (08), insufficient resources (53)
// and operator intervention such as admin shutdown (57).
func isTransientClass(code string) bool {
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "53") || strings.HasPrefix(code, "57")
}
