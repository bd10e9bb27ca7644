// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"sync"
	"time"

	"github.com/diffeo/go-mediamanager/importer"
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// record appends a change to the change table and notifies feeds
// once the transaction commits.  withTx serializes writers, so
// changes commit in sequence order and a feed never skips a change
// that commits late.
func (s *pgService) record(tx *sql.Tx, docType string, op mediamanager.DocOp, oid, origID, appID string, doc interface{}) error {
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	var (
		params queryParams
		fields fieldList
	)
	fields.Add(&params, "doc_type", docType)
	fields.Add(&params, "op", int(op))
	fields.Add(&params, "oid", oid)
	fields.Add(&params, "orig_id", nullString(origID))
	fields.Add(&params, "app_id", nullString(appID))
	fields.Add(&params, "data", data)
	if _, err = tx.Exec(fields.InsertStatement(docChangeTable), params...); err != nil {
		return err
	}
	_, err = tx.Exec("SELECT pg_notify($1, '')", changeChannel)
	return err
}

// decodeChange rebuilds the document carried by a change.
func decodeChange(change *mediamanager.DocChange, data []byte) (err error) {
	switch {
	case change.Op == mediamanager.DocDeleted:
		change.Doc, err = bytesToMap(data)
	case change.DocType == mediamanager.ImportBatchDocType:
		change.Doc, err = bytesToImportBatch(data)
	default:
		change.Doc, err = bytesToImage(data)
	}
	return
}

// changesSince selects the changes after seq, optionally only those
// attributed to one application.
func (s *pgService) changesSince(seq int64, appID string) ([]mediamanager.DocChange, error) {
	conditions := []string{changeAfterSeq}
	params := queryParams{seq}
	if appID != "" {
		conditions = append(conditions, changeFromAppID)
		params = append(params, appID)
	}
	query := buildSelect([]string{
		changeSeq,
		changeDocType,
		changeOp,
		changeOID,
		changeOrigID,
		changeData,
	}, []string{docChangeTable}, conditions) + " ORDER BY " + changeSeq
	var result []mediamanager.DocChange
	err := queryAndScan(s, query, params, func(rows *sql.Rows) error {
		var (
			change mediamanager.DocChange
			op     int
			origID sql.NullString
			data   []byte
		)
		err := rows.Scan(&change.Seq, &change.DocType, &op, &change.ID, &origID, &data)
		if err != nil {
			return err
		}
		change.Op = mediamanager.DocOp(op)
		change.OrigID = origID.String
		if err = decodeChange(&change, data); err != nil {
			return err
		}
		result = append(result, change)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// currentSeq returns the sequence number of the most recent change.
func (s *pgService) currentSeq() (seq int64, err error) {
	err = withTx(s, true, func(tx *sql.Tx) error {
		query := buildSelect([]string{"COALESCE(MAX(" + changeSeq + "), 0)"}, []string{docChangeTable}, nil)
		return tx.QueryRow(query).Scan(&seq)
	})
	return
}

type pgFeed struct {
	s         *pgService
	id        string
	since     int64
	appID     string
	listener  *pq.Listener
	log       logrus.FieldLogger
	done      chan struct{}
	closeOnce sync.Once
	listen    sync.Once
}

func (s *pgService) ChangesFeed(opts mediamanager.ChangesFeedOptions) (mediamanager.ChangesFeed, error) {
	since := opts.Since
	if since == 0 {
		var err error
		since, err = s.currentSeq()
		if err != nil {
			return nil, err
		}
	} else if since < 0 {
		since = 0
	}

	feed := &pgFeed{
		s:     s,
		id:    importer.NewOID(),
		since: since,
		appID: opts.AppID,
		done:  make(chan struct{}),
	}
	feed.log = s.log.WithField("feed", feed.id)
	feed.listener = pq.NewListener(s.connectionString, 10*time.Millisecond, time.Minute, feed.listenerEvent)
	if err := feed.listener.Listen(changeChannel); err != nil {
		feed.listener.Close()
		return nil, err
	}
	return feed, nil
}

// listenerEvent logs changes in the state of the notification
// connection.
func (feed *pgFeed) listenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		feed.log.WithError(err).Warn("changes feed lost its connection")
	case pq.ListenerEventReconnected:
		feed.log.Info("changes feed reconnected")
	}
}

func (feed *pgFeed) ID() string {
	return feed.id
}

func (feed *pgFeed) Since() int64 {
	return feed.since
}

func (feed *pgFeed) Close() (err error) {
	feed.closeOnce.Do(func() {
		close(feed.done)
		err = feed.listener.Close()
	})
	return
}

func (feed *pgFeed) Listen() <-chan mediamanager.DocChange {
	out := make(chan mediamanager.DocChange)
	started := false
	feed.listen.Do(func() {
		started = true
		go feed.run(out)
	})
	if !started {
		close(out)
	}
	return out
}

// run delivers changes until the feed is closed.  It looks for new
// changes whenever a notification arrives, and also periodically in
// case a notification was lost while reconnecting.
func (feed *pgFeed) run(out chan<- mediamanager.DocChange) {
	defer close(out)
	seq := feed.since
	for {
		changes, err := feed.s.changesSince(seq, feed.appID)
		if err != nil {
			feed.log.WithError(err).Warn("could not read changes")
		}
		for _, change := range changes {
			select {
			case out <- change:
				seq = change.Seq
			case <-feed.done:
				return
			}
		}

		select {
		case _, ok := <-feed.listener.Notify:
			if !ok {
				return
			}
		case <-time.After(feed.s.pollInterval):
			go feed.listener.Ping()
		case <-feed.done:
			return
		}
	}
}

// The PostgreSQL store has no replication peers of its own, so a
// synchronization walks the local documents and reports what it saw.
// Session state lives in the database, so any process sharing it can
// report on a session.

type pgSynchronizer struct {
	s    *pgService
	id   string
	once sync.Once
}

func (s *pgService) Sync() (mediamanager.Synchronizer, error) {
	syncer := &pgSynchronizer{s: s, id: importer.NewOID()}
	var (
		params queryParams
		fields fieldList
	)
	fields.Add(&params, "oid", syncer.id)
	fields.Add(&params, "status", string(mediamanager.SyncInit))
	err := execInTx(s, fields.InsertStatement(syncStateTable), params)
	if err != nil {
		return nil, err
	}
	return syncer, nil
}

// loadSyncState fetches one synchronization session's state.
func loadSyncState(tx *sql.Tx, id string) (*mediamanager.SyncState, error) {
	var (
		state                  mediamanager.SyncState
		status                 string
		startedAt, completedAt pq.NullTime
		errorText              sql.NullString
	)
	query := buildSelect([]string{
		syncOID,
		syncStatus,
		syncStartedAt,
		syncCompletedAt,
		syncDocsRead,
		syncDocsWritten,
		syncError,
	}, []string{syncStateTable}, []string{isSync})
	err := tx.QueryRow(query, id).Scan(&state.OID, &status, &startedAt, &completedAt,
		&state.DocsRead, &state.DocsWritten, &errorText)
	if err == sql.ErrNoRows {
		return nil, mediamanager.ErrNoSuchSync{ID: id}
	}
	if err != nil {
		return nil, err
	}
	state.Status = mediamanager.SyncStatus(status)
	state.StartedAt = nullTimeToTime(startedAt)
	state.CompletedAt = nullTimeToTime(completedAt)
	state.Error = errorText.String
	return &state, nil
}

func (s *pgService) SyncState(id string) (state *mediamanager.SyncState, err error) {
	err = withTx(s, true, func(tx *sql.Tx) (err error) {
		state, err = loadSyncState(tx, id)
		return
	})
	return
}

func (syncer *pgSynchronizer) ID() string {
	return syncer.id
}

func (syncer *pgSynchronizer) Run() <-chan mediamanager.SyncEvent {
	events := make(chan mediamanager.SyncEvent, 3)
	ran := false
	syncer.once.Do(func() {
		ran = true
		go syncer.run(events)
	})
	if !ran {
		close(events)
	}
	return events
}

// update writes some fields of the stored state, returning the new
// state.
func (syncer *pgSynchronizer) update(f func(*fieldList, *queryParams)) (*mediamanager.SyncState, error) {
	var state *mediamanager.SyncState
	err := withTx(syncer.s, false, func(tx *sql.Tx) error {
		var (
			params queryParams
			fields fieldList
		)
		f(&fields, &params)
		query := buildUpdate(syncStateTable, fields.UpdateChanges(),
			[]string{syncOID + "=" + params.Param(syncer.id)})
		_, err := tx.Exec(query, params...)
		if err != nil {
			return err
		}
		state, err = loadSyncState(tx, syncer.id)
		return err
	})
	return state, err
}

// countDocs counts the stored images and import batches.
func (syncer *pgSynchronizer) countDocs() (count int, err error) {
	err = withTx(syncer.s, true, func(tx *sql.Tx) error {
		query := "SELECT (SELECT COUNT(*) FROM " + imageTable + ") + (SELECT COUNT(*) FROM " + importBatchTable + ")"
		return tx.QueryRow(query).Scan(&count)
	})
	return
}

func (syncer *pgSynchronizer) run(events chan<- mediamanager.SyncEvent) {
	defer close(events)
	clk := syncer.s.clock
	log := syncer.s.log.WithField("sync", syncer.id)

	// fail records an error; if even that fails there is nothing
	// more to report than the log
	fail := func(err error) {
		log.WithError(err).Error("synchronization failed")
		state, err2 := syncer.update(func(fields *fieldList, params *queryParams) {
			fields.Add(params, "status", string(mediamanager.SyncError))
			fields.Add(params, "completed_at", timeToNullTime(clk.Now()))
			fields.Add(params, "error", err.Error())
		})
		if err2 != nil {
			log.WithError(err2).Error("could not record synchronization failure")
			state = &mediamanager.SyncState{OID: syncer.id, Status: mediamanager.SyncError, Error: err.Error()}
		}
		events <- mediamanager.SyncEvent{Kind: mediamanager.SyncCompletedEvent, State: *state}
	}

	state, err := syncer.update(func(fields *fieldList, params *queryParams) {
		fields.Add(params, "status", string(mediamanager.SyncStarted))
		fields.Add(params, "started_at", timeToNullTime(clk.Now()))
	})
	if err != nil {
		fail(err)
		return
	}
	events <- mediamanager.SyncEvent{Kind: mediamanager.SyncStartedEvent, State: *state}

	count, err := syncer.countDocs()
	if err != nil {
		fail(err)
		return
	}
	state, err = syncer.update(func(fields *fieldList, params *queryParams) {
		fields.Add(params, "docs_read", count)
	})
	if err != nil {
		fail(err)
		return
	}
	events <- mediamanager.SyncEvent{Kind: mediamanager.SyncProgressEvent, State: *state}

	state, err = syncer.update(func(fields *fieldList, params *queryParams) {
		fields.Add(params, "status", string(mediamanager.SyncCompleted))
		fields.Add(params, "completed_at", timeToNullTime(clk.Now()))
	})
	if err != nil {
		fail(err)
		return
	}
	events <- mediamanager.SyncEvent{Kind: mediamanager.SyncCompletedEvent, State: *state}
}
