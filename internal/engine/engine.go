// Package engine — движок оценки и сертификации. Каждая операция выполняется
// в одной транзакции Postgres; событие отправки листа обрабатывается синхронно
// в той же транзакции, что и сама отправка.
package engine

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/logging"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/observability"
)

// DefaultDateLayout — формат {date} в сертификате.
const DefaultDateLayout = "January 2, 2006"

// Notifier сообщает участнику о выданном сертификате. Вызывается после коммита,
// ошибка не влияет на выдачу.
type Notifier interface {
	CertificateIssued(ctx context.Context, user models.User, cert models.IssuedCertificate, eventTitle string) error
}

type Config struct {
	Location   *time.Location
	DateLayout string
	Notifier   Notifier
	// Now подменяется в тестах.
	Now func() time.Time
}

type Service struct {
	db         *sql.DB
	log        *zap.Logger
	loc        *time.Location
	dateLayout string
	notifier   Notifier
	now        func() time.Time
	sheets     *keyLimiter
}

func New(database *sql.DB, log *zap.Logger, cfg Config) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		db:         database,
		log:        log,
		loc:        cfg.Location,
		dateLayout: cfg.DateLayout,
		notifier:   cfg.Notifier,
		now:        cfg.Now,
		sheets:     newKeyLimiter(),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.dateLayout == "" {
		s.dateLayout = DefaultDateLayout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// operator — id оператора из контекста запроса; без него пишущие операции запрещены.
func operator(ctx context.Context) (int64, error) {
	id, ok := ctxutil.OperatorID(ctx)
	if !ok || id <= 0 {
		return 0, apperr.Invalid(apperr.CodeUnauthenticated, "operator is not identified", nil)
	}
	return id, nil
}

// begin помечает операцию в контексте и возвращает логгер с полями запроса.
func (s *Service) begin(ctx context.Context, op string) (context.Context, *zap.Logger) {
	ctx = ctxutil.WithOp(ctx, op)
	return ctx, logging.With(ctx, s.log)
}

// fail логирует ошибку: доменные на debug, прочие на error и в Sentry.
func (s *Service) fail(ctx context.Context, log *zap.Logger, err error) error {
	if err == nil {
		return nil
	}
	if apperr.CategoryOf(err) == apperr.CategoryInternal {
		log.Error("operation failed", zap.Error(err))
		observability.CaptureErrCtx(ctx, err)
	} else {
		log.Debug("operation rejected", zap.String("code", string(apperr.CodeOf(err))), zap.Error(err))
	}
	return err
}

func (s *Service) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return db.WithTx(ctx, s.db, fn)
}

func checkVersion(ev *models.ParticipantEvaluation, expected *int64) error {
	if expected != nil && *expected != ev.Version {
		return &apperr.StaleEvaluationError{EvaluationID: ev.ID, Expected: *expected, Actual: ev.Version}
	}
	return nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
