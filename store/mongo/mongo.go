/*
Package mongo provides a MongoDB-backed worklog.Store.

PURPOSE:
  Document-store backend for deployments that already run MongoDB, or that
  want several server processes writing the same ledger.

COLLECTIONS:
  day_entries:    one document per owner and date (unique index)
  bulk_plans:     one document per owner, _id = owner
  leave_settings: one document per owner, _id = owner

WRITE SEMANTICS:
  Entries are written with ReplaceOne(upsert) filtered by owner and date,
  so the last write for a date wins and no field outlives it. Decimals are stored as strings.

CHANGE NOTIFICATION:
  WatchMonth opens a change stream filtered on owner and month. Unlike the
  in-process Hub this also sees writes from other processes. Change
  streams need a replica set; on a standalone server Watch fails and the
  error is returned to the caller.
*/
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/worklog"
)

type Store struct {
	client   *mongo.Client
	entries  *mongo.Collection
	plans    *mongo.Collection
	settings *mongo.Collection
	log      *log.Logger
}

// New connects, pings and ensures indexes.
func New(ctx context.Context, uri, database string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		entries:  db.Collection("day_entries"),
		plans:    db.Collection("bulk_plans"),
		settings: db.Collection("leave_settings"),
		log:      logger,
	}

	if _, err := s.entries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "month", Value: 1}}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create day_entries indexes: %w", err)
	}

	logger.Info("connected to mongodb", "database", database)
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type entryDoc struct {
	OwnerID      string    `bson:"owner_id"`
	Date         string    `bson:"date"`  // YYYY-MM-DD
	Month        string    `bson:"month"` // YYYY-MM
	Mode         string    `bson:"mode"`
	Preset       string    `bson:"preset,omitempty"`
	Start        string    `bson:"start,omitempty"`
	End          string    `bson:"end,omitempty"`
	BreakEnabled bool      `bson:"break_enabled"`
	BreakStart   string    `bson:"break_start,omitempty"`
	BreakEnd     string    `bson:"break_end,omitempty"`
	ManualHours  string    `bson:"manual_hours,omitempty"`
	LeaveType    string    `bson:"leave_type"`
	Memo         string    `bson:"memo"`
	Hours        string    `bson:"hours"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toEntryDoc(owner worklog.OwnerID, e worklog.DayEntry) entryDoc {
	doc := entryDoc{
		OwnerID:   string(owner),
		Date:      e.Date.String(),
		Month:     e.Date.YearMonth().String(),
		Mode:      string(e.Mode()),
		LeaveType: string(e.LeaveType.Normalize()),
		Memo:      e.Memo,
		Hours:     e.Hours.String(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
	if sw, ok := e.Shift(); ok {
		doc.Preset = sw.Preset
		doc.Start = sw.Start
		doc.End = sw.End
		doc.BreakEnabled = sw.BreakEnabled
		doc.BreakStart = sw.BreakStart
		doc.BreakEnd = sw.BreakEnd
	}
	if mw, ok := e.Manual(); ok {
		doc.ManualHours = mw.Hours.String()
	}
	return doc
}

func (doc entryDoc) entry() (worklog.DayEntry, error) {
	d, err := calendar.ParseDate(doc.Date)
	if err != nil {
		return worklog.DayEntry{}, fmt.Errorf("corrupt entry date %q: %w", doc.Date, err)
	}
	e := worklog.DayEntry{
		Date:      d,
		LeaveType: worklog.LeaveType(doc.LeaveType).Normalize(),
		Memo:      doc.Memo,
		Hours:     parseDecimal(doc.Hours),
		UpdatedAt: doc.UpdatedAt,
	}
	if worklog.Mode(doc.Mode) == worklog.ModeManual {
		e.Work = worklog.ManualWork{Hours: parseDecimal(doc.ManualHours)}
	} else {
		e.Work = worklog.ShiftWork{
			Preset:       doc.Preset,
			Start:        doc.Start,
			End:          doc.End,
			BreakEnabled: doc.BreakEnabled,
			BreakStart:   doc.BreakStart,
			BreakEnd:     doc.BreakEnd,
		}
	}
	return e, nil
}

type planDoc struct {
	ID   string           `bson:"_id"`
	Plan worklog.BulkPlan `bson:"plan"`
}

type settingsDoc struct {
	ID          string `bson:"_id"`
	AnnualTotal string `bson:"annual_total"`
	ValidUntil  string `bson:"valid_until,omitempty"`
}

// =============================================================================
// ENTRY STORE
// =============================================================================

func (s *Store) MonthEntries(ctx context.Context, owner worklog.OwnerID, month calendar.YearMonth) ([]worklog.DayEntry, error) {
	cursor, err := s.entries.Find(ctx,
		bson.M{"owner_id": string(owner), "month": month.String()},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, wrapErr("find entries", err)
	}
	var docs []entryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode entries", err)
	}

	entries := make([]worklog.DayEntry, 0, len(docs))
	for _, doc := range docs {
		e, err := doc.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) GetEntry(ctx context.Context, owner worklog.OwnerID, date calendar.Date) (worklog.DayEntry, error) {
	var doc entryDoc
	err := s.entries.FindOne(ctx, bson.M{"owner_id": string(owner), "date": date.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return worklog.DayEntry{}, worklog.ErrNotFound
	}
	if err != nil {
		return worklog.DayEntry{}, wrapErr("find entry", err)
	}
	return doc.entry()
}

func (s *Store) PutEntry(ctx context.Context, owner worklog.OwnerID, e worklog.DayEntry) error {
	doc := toEntryDoc(owner, e)
	// Entries are written whole; a $set would keep fields omitted as empty.
	_, err := s.entries.ReplaceOne(ctx,
		bson.M{"owner_id": doc.OwnerID, "date": doc.Date},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return wrapErr("upsert entry", err)
	}
	return nil
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

func (s *Store) GetBulkPlan(ctx context.Context, owner worklog.OwnerID) (*worklog.BulkPlan, error) {
	var doc planDoc
	err := s.plans.FindOne(ctx, bson.M{"_id": string(owner)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find bulk plan", err)
	}
	return &doc.Plan, nil
}

func (s *Store) PutBulkPlan(ctx context.Context, owner worklog.OwnerID, plan worklog.BulkPlan) error {
	_, err := s.plans.ReplaceOne(ctx,
		bson.M{"_id": string(owner)},
		planDoc{ID: string(owner), Plan: plan},
		options.Replace().SetUpsert(true))
	if err != nil {
		return wrapErr("replace bulk plan", err)
	}
	return nil
}

func (s *Store) GetLeaveSettings(ctx context.Context, owner worklog.OwnerID) (*worklog.LeaveSettings, error) {
	var doc settingsDoc
	err := s.settings.FindOne(ctx, bson.M{"_id": string(owner)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find leave settings", err)
	}

	out := &worklog.LeaveSettings{AnnualTotal: parseDecimal(doc.AnnualTotal)}
	if doc.ValidUntil != "" {
		ym, err := calendar.ParseYearMonth(doc.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("corrupt valid_until %q: %w", doc.ValidUntil, err)
		}
		out.ValidUntil = &ym
	}
	return out, nil
}

func (s *Store) PutLeaveSettings(ctx context.Context, owner worklog.OwnerID, settings worklog.LeaveSettings) error {
	doc := settingsDoc{ID: string(owner), AnnualTotal: settings.AnnualTotal.String()}
	if settings.ValidUntil != nil && !settings.ValidUntil.IsZero() {
		doc.ValidUntil = settings.ValidUntil.String()
	}
	_, err := s.settings.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return wrapErr("replace leave settings", err)
	}
	return nil
}

// =============================================================================
// WATCHER
// =============================================================================

// WatchMonth streams change events for the owner's month.
func (s *Store) WatchMonth(ctx context.Context, owner worklog.OwnerID, month calendar.YearMonth) (<-chan struct{}, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.M{"$in": bson.A{"insert", "update", "replace"}}},
			{Key: "fullDocument.owner_id", Value: string(owner)},
			{Key: "fullDocument.month", Value: month.String()},
		}}},
	}
	cs, err := s.entries.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, wrapErr("watch entries", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn("change stream ended", "owner", owner, "month", month, "err", err)
		}
	}()
	return ch, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// wrapErr marks timeouts and network failures as retryable.
func wrapErr(op string, err error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return worklog.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ worklog.Store = (*Store)(nil)
