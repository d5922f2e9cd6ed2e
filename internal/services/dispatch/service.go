package dispatchsvc

import (
	"context"
	"errors"

	"github.com/jdertmann/herald/internal/eventlog"
	"github.com/jdertmann/herald/internal/runtime"
	"github.com/jdertmann/herald/internal/subscription"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

// ErrDedupKeyRequired rejects submissions without an idempotency key.
var ErrDedupKeyRequired = errors.New("dispatch: dedup key required")

// Service is the protocol facade: admission, publishing into the log, direct
// queue fan-out, and delegation to the subscription registry.
//
// Admission-path operations (AdmitOnce, Publish, FanOut) hold the runtime
// gate's lock so that test-and-insert on the dedup key composes atomically
// with the writes it guards, no matter how many facades share the runtime.
// Cursor and migration operations are serialized inside the registry.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// New returns a Service using a default logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, nil)
}

// NewWithLogger constructs the service with an injected logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("dispatch"))
	}
	return &Service{rt: rt, logger: logger}
}

// AdmitOnce records dedupKey in the admission set. Exactly one of N
// concurrent callers with the same key sees true.
func (s *Service) AdmitOnce(ctx context.Context, dedupKey string) (bool, error) {
	if dedupKey == "" {
		return false, ErrDedupKeyRequired
	}
	s.rt.Gate().Lock()
	defer s.rt.Gate().Unlock()

	admitted, err := s.rt.Gate().Admitted(dedupKey)
	if err != nil {
		return false, err
	}
	if admitted {
		s.rt.Metrics().EntriesRejected.Inc()
		return false, nil
	}

	b := s.rt.DB().NewBatch()
	defer b.Close()
	if err := s.rt.Gate().StageAdmit(b, dedupKey); err != nil {
		return false, err
	}
	if err := s.rt.DB().CommitBatch(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

// Publish admits dedupKey and appends the payload to the log in one atomic
// commit. A duplicate key leaves the log untouched and returns ok=false.
func (s *Service) Publish(ctx context.Context, dedupKey string, payload []byte) (eventlog.EntryID, bool, error) {
	if dedupKey == "" {
		return eventlog.Zero, false, ErrDedupKeyRequired
	}
	s.rt.Gate().Lock()
	defer s.rt.Gate().Unlock()

	admitted, err := s.rt.Gate().Admitted(dedupKey)
	if err != nil {
		return eventlog.Zero, false, err
	}
	if admitted {
		s.rt.Metrics().EntriesRejected.Inc()
		return eventlog.Zero, false, nil
	}

	b := s.rt.DB().NewBatch()
	defer b.Close()
	if err := s.rt.Gate().StageAdmit(b, dedupKey); err != nil {
		return eventlog.Zero, false, err
	}
	id, err := s.rt.Log().StageAppend(b, dedupKey, payload)
	if err != nil {
		return eventlog.Zero, false, err
	}
	if err := s.rt.DB().CommitBatch(ctx, b); err != nil {
		return eventlog.Zero, false, err
	}
	s.rt.Log().Notify()

	s.rt.Metrics().EntriesPublished.Inc()
	s.logger.Debug("entry published",
		logpkg.Str("dedup_key", dedupKey),
		logpkg.Str("entry", id.String()))
	return id, true, nil
}

// FanOut admits dedupKey and pushes the payload to each destination's direct
// queue, preserving the given order, all in one atomic commit. A duplicate
// key pushes nothing and returns false.
func (s *Service) FanOut(ctx context.Context, dedupKey string, payload []byte, destinationIDs []string) (bool, error) {
	if dedupKey == "" {
		return false, ErrDedupKeyRequired
	}
	s.rt.Gate().Lock()
	defer s.rt.Gate().Unlock()

	admitted, err := s.rt.Gate().Admitted(dedupKey)
	if err != nil {
		return false, err
	}
	if admitted {
		s.rt.Metrics().EntriesRejected.Inc()
		return false, nil
	}

	b := s.rt.DB().NewBatch()
	defer b.Close()
	if err := s.rt.Gate().StageAdmit(b, dedupKey); err != nil {
		return false, err
	}
	for _, dest := range destinationIDs {
		if _, err := s.rt.Queues().StagePush(b, dest, payload); err != nil {
			return false, err
		}
	}
	if err := s.rt.DB().CommitBatch(ctx, b); err != nil {
		return false, err
	}

	s.rt.Metrics().FanoutDeliveries.Add(float64(len(destinationIDs)))
	s.logger.Debug("fanned out",
		logpkg.Str("dedup_key", dedupKey),
		logpkg.Int("destinations", len(destinationIDs)))
	return true, nil
}

// Register creates or updates a destination subscription. The filter string
// is stored as-is; one that does not compile as an expression delivers
// nothing until the destination re-registers with a usable one, so a failed
// compile here is only worth a warning.
func (s *Service) Register(ctx context.Context, destinationID, filter string) (bool, error) {
	if filter != "" {
		if _, err := CompileFilter(filter); err != nil {
			s.logger.Warn("filter does not compile, destination will receive nothing",
				logpkg.Str("destination", destinationID),
				logpkg.Err(err))
		}
	}
	created, err := s.rt.Registry().Register(ctx, destinationID, filter)
	if err != nil {
		return false, err
	}
	if created {
		s.rt.Metrics().Registrations.Inc()
		s.logger.Info("destination registered", logpkg.Str("destination", destinationID))
	}
	return created, nil
}

// Acknowledge advances a destination's cursor to candidate.
func (s *Service) Acknowledge(ctx context.Context, destinationID string, candidate eventlog.EntryID) (bool, error) {
	ok, err := s.rt.Registry().Acknowledge(ctx, destinationID, candidate)
	if err != nil {
		return false, err
	}
	if ok {
		s.rt.Metrics().Acknowledged.Inc()
	} else {
		s.rt.Metrics().AckConflicts.Inc()
	}
	return ok, nil
}

// Unacknowledge rolls a destination's cursor back one position.
func (s *Service) Unacknowledge(ctx context.Context, destinationID string, expectedCurrent eventlog.EntryID) (bool, error) {
	ok, err := s.rt.Registry().Unacknowledge(ctx, destinationID, expectedCurrent)
	if err != nil {
		return false, err
	}
	if ok {
		s.rt.Metrics().Unacknowledged.Inc()
	}
	return ok, nil
}

// Migrate transplants a destination's subscription state to a new identity.
func (s *Service) Migrate(ctx context.Context, oldID, newID string) (bool, error) {
	ok, err := s.rt.Registry().Migrate(ctx, oldID, newID)
	if err != nil {
		return false, err
	}
	if ok {
		s.rt.Metrics().Migrations.Inc()
		s.logger.Info("destination migrated",
			logpkg.Str("old", oldID),
			logpkg.Str("new", newID))
	}
	return ok, nil
}

// Resolve looks up a destination, following migration redirects to the live
// record.
func (s *Service) Resolve(id string) (subscription.Destination, bool, error) {
	return s.rt.Registry().Resolve(id)
}

// ReadAfter returns up to limit log entries with ID greater than after.
func (s *Service) ReadAfter(after eventlog.EntryID, limit int) ([]eventlog.Entry, error) {
	return s.rt.Log().ReadAfter(after, limit)
}

// Tail returns the log's last assigned entry ID.
func (s *Service) Tail() eventlog.EntryID {
	return s.rt.Log().Tail()
}

// Destinations lists the registered set.
func (s *Service) Destinations() ([]string, error) {
	return s.rt.Registry().Destinations()
}
