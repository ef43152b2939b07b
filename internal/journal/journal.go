package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	// duckdb driver registration.
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// dispositionPromoted is the interim disposition between arbitration and the
// execution engine's terminal verdict. It is journal-internal; the terminal
// dispositions are types.SignalDisposition values.
const dispositionPromoted = "promoted"

// SignalRecord is one signal's audit row: how it entered arbitration and how
// it was resolved.
type SignalRecord struct {
	SignalID      string
	Instrument    string
	StrategyID    string
	Action        string
	Confidence    float64
	Disposition   string
	DiscardReason string
	Detail        string
	RecordedAt    time.Time
}

// OrderRecord is one order's journal row.
type OrderRecord struct {
	OrderID      string
	VenueOrderID string
	Instrument   string
	Side         string
	Kind         string
	Quantity     float64
	Status       string
	Reason       string
	Message      string
	StrategyID   string
	SignalID     string
	RetryCount   int
}

// Journal is the audit trail for signals, orders and fills, backed by an
// in-memory duckdb database. On Close the tables are exported as parquet
// artifacts into the session's run folder. It is the only record of "signal
// generated but never traded", so every signal must end up with exactly one
// terminal disposition here.
type Journal struct {
	db      *sql.DB
	sq      squirrel.StatementBuilderType
	session *SessionManager
	export  bool
	log     *logger.Logger

	// duckdb is happiest with serialized writers; the tick and monitor
	// loops both record here.
	mu sync.Mutex
}

// NewJournal opens the journal database and creates its tables. A nil
// session or export=false disables the parquet export on close, the
// in-memory audit trail still works.
func NewJournal(session *SessionManager, export bool, log *logger.Logger) (*Journal, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalInitFailed, "failed to open journal database", err)
	}

	j := &Journal{
		db:      db,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		session: session,
		export:  export && session != nil,
		log:     log.Named("journal"),
		mu:      sync.Mutex{},
	}

	if err := j.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return j, nil
}

func (j *Journal) initialize() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			signal_id TEXT PRIMARY KEY,
			instrument TEXT,
			strategy_id TEXT,
			action TEXT,
			confidence DOUBLE,
			stop_loss DOUBLE,
			target DOUBLE,
			generated_at TIMESTAMP,
			disposition TEXT,
			discard_reason TEXT,
			detail TEXT,
			recorded_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			venue_order_id TEXT,
			instrument TEXT,
			side TEXT,
			kind TEXT,
			quantity DOUBLE,
			limit_price DOUBLE,
			trigger_price DOUBLE,
			status TEXT,
			reason TEXT,
			message TEXT,
			strategy_id TEXT,
			signal_id TEXT,
			retry_count INTEGER,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS fills (
			order_id TEXT,
			venue_order_id TEXT,
			instrument TEXT,
			side TEXT,
			quantity DOUBLE,
			price DOUBLE,
			fee DOUBLE,
			realized_pnl DOUBLE,
			executed_at TIMESTAMP
		)`,
	}

	for _, stmt := range ddl {
		if _, err := j.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeJournalInitFailed, "failed to create journal tables", err)
		}
	}

	return nil
}

// RecordDiscard writes a terminal discarded row for a signal the arbiter
// dropped.
func (j *Journal) RecordDiscard(signal types.Signal, reason types.DiscardReason, detail string) error {
	return j.insertSignal(signal, string(types.SignalDispositionDiscarded), string(reason), detail)
}

// RecordPromotion writes the interim promoted row for a signal handed to the
// execution engine. FinalizeSignal later resolves it to executed or failed.
func (j *Journal) RecordPromotion(signal types.Signal) error {
	return j.insertSignal(signal, dispositionPromoted, "", "")
}

func (j *Journal) insertSignal(signal types.Signal, disposition, reason, detail string) error {
	stopLoss := signal.StopLoss.TakeOr(0)
	target := signal.Target.TakeOr(0)

	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.sq.
		Insert("signals").
		Columns("signal_id", "instrument", "strategy_id", "action", "confidence",
			"stop_loss", "target", "generated_at", "disposition", "discard_reason",
			"detail", "recorded_at").
		Values(signal.ID, signal.Instrument, signal.StrategyID, string(signal.Action), signal.Confidence,
			stopLoss, target, signal.GeneratedAt, disposition, reason,
			detail, time.Now()).
		RunWith(j.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to record signal %s", signal.ID)
	}

	return nil
}

// FinalizeSignal resolves a promoted signal to its terminal disposition.
// Only the promoted interim state can be finalized, so a signal can never
// receive two terminal dispositions.
func (j *Journal) FinalizeSignal(signalID string, disposition types.SignalDisposition, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	result, err := j.sq.
		Update("signals").
		Set("disposition", string(disposition)).
		Set("detail", detail).
		Set("recorded_at", time.Now()).
		Where(squirrel.Eq{"signal_id": signalID, "disposition": dispositionPromoted}).
		RunWith(j.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to finalize signal %s", signalID)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to read finalize result", err)
	}

	if affected == 0 {
		return errors.Newf(errors.ErrCodeJournalWriteFailed,
			"signal %s is not in promoted state, refusing second disposition", signalID)
	}

	return nil
}

// RecordOrder writes a new order row at submission time.
func (j *Journal) RecordOrder(order types.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.sq.
		Insert("orders").
		Columns("order_id", "venue_order_id", "instrument", "side", "kind",
			"quantity", "limit_price", "trigger_price", "status", "reason",
			"message", "strategy_id", "signal_id", "retry_count", "created_at", "updated_at").
		Values(order.ID, order.VenueOrderID, order.Instrument, string(order.Side), string(order.Kind),
			order.Quantity, order.LimitPrice, order.TriggerPrice, string(order.Status), order.Reason.Reason,
			order.Reason.Message, order.StrategyID, order.SignalID, order.RetryCount, order.CreatedAt, order.UpdatedAt).
		RunWith(j.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to record order %s", order.ID)
	}

	return nil
}

// UpdateOrder refreshes an order row after a status change or retry.
func (j *Journal) UpdateOrder(order types.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.sq.
		Update("orders").
		Set("venue_order_id", order.VenueOrderID).
		Set("status", string(order.Status)).
		Set("retry_count", order.RetryCount).
		Set("updated_at", order.UpdatedAt).
		Where(squirrel.Eq{"order_id": order.ID}).
		RunWith(j.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to update order %s", order.ID)
	}

	return nil
}

// RecordFill writes one execution row with the realized P&L it produced.
func (j *Journal) RecordFill(fill types.Fill, realizedPnL float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.sq.
		Insert("fills").
		Columns("order_id", "venue_order_id", "instrument", "side", "quantity",
			"price", "fee", "realized_pnl", "executed_at").
		Values(fill.OrderID, fill.VenueOrderID, fill.Instrument, string(fill.Side), fill.Quantity,
			fill.Price, fill.Fee, realizedPnL, fill.ExecutedAt).
		RunWith(j.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to record fill for order %s", fill.OrderID)
	}

	return nil
}

// GetSignalRecord reads one signal's audit row.
func (j *Journal) GetSignalRecord(signalID string) (SignalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	//nolint:exhaustruct
	record := SignalRecord{}

	err := j.sq.
		Select("signal_id", "instrument", "strategy_id", "action", "confidence",
			"disposition", "discard_reason", "detail", "recorded_at").
		From("signals").
		Where(squirrel.Eq{"signal_id": signalID}).
		RunWith(j.db).
		QueryRow().
		Scan(&record.SignalID, &record.Instrument, &record.StrategyID, &record.Action, &record.Confidence,
			&record.Disposition, &record.DiscardReason, &record.Detail, &record.RecordedAt)
	if err != nil {
		return record, errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to read signal %s", signalID)
	}

	return record, nil
}

// GetOrderRecord reads one order's journal row.
func (j *Journal) GetOrderRecord(orderID string) (OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	//nolint:exhaustruct
	record := OrderRecord{}

	err := j.sq.
		Select("order_id", "venue_order_id", "instrument", "side", "kind",
			"quantity", "status", "reason", "message", "strategy_id", "signal_id", "retry_count").
		From("orders").
		Where(squirrel.Eq{"order_id": orderID}).
		RunWith(j.db).
		QueryRow().
		Scan(&record.OrderID, &record.VenueOrderID, &record.Instrument, &record.Side, &record.Kind,
			&record.Quantity, &record.Status, &record.Reason, &record.Message, &record.StrategyID,
			&record.SignalID, &record.RetryCount)
	if err != nil {
		return record, errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to read order %s", orderID)
	}

	return record, nil
}

// CountByDisposition tallies signal rows per disposition, including the
// interim promoted state.
func (j *Journal) CountByDisposition() (map[string]int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.sq.
		Select("disposition", "COUNT(*)").
		From("signals").
		GroupBy("disposition").
		RunWith(j.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to count dispositions", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			disposition string
			count       int
		)

		if err := rows.Scan(&disposition, &count); err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to scan disposition count", err)
		}

		counts[disposition] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to iterate disposition counts", err)
	}

	return counts, nil
}

// Flush exports the journal tables as parquet artifacts into the session run
// folder. Squirrel has no COPY support, so the export uses raw SQL like the
// rest of the duckdb tooling.
func (j *Journal) Flush() error {
	if !j.export {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, table := range []string{"signals", "orders", "fills"} {
		path := j.session.FilePath(table + ".parquet")

		if _, err := j.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, path)); err != nil {
			return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to export %s to parquet", table)
		}
	}

	j.log.Info("journal exported", zap.String("path", j.session.RunPath()))

	return nil
}

// Close flushes the parquet export and closes the database.
func (j *Journal) Close() error {
	if err := j.Flush(); err != nil {
		j.log.Error("journal export failed on close", zap.Error(err))
	}

	if err := j.db.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to close journal database", err)
	}

	return nil
}
