// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"sync"

	"github.com/diffeo/go-mediamanager/importer"
	"github.com/diffeo/go-mediamanager/mediamanager"
)

// The in-memory store has no replication peers, so a synchronization
// only walks the local documents and reports what it saw.

type memSynchronizer struct {
	s    *memService
	id   string
	once sync.Once
}

func (s *memService) Sync() (mediamanager.Synchronizer, error) {
	s.globalLock()
	defer s.globalUnlock()

	syncer := &memSynchronizer{s: s, id: importer.NewOID()}
	s.syncs[syncer.id] = &mediamanager.SyncState{
		OID:    syncer.id,
		Status: mediamanager.SyncInit,
	}
	return syncer, nil
}

func (s *memService) SyncState(id string) (*mediamanager.SyncState, error) {
	s.globalLock()
	defer s.globalUnlock()

	state, present := s.syncs[id]
	if !present {
		return nil, mediamanager.ErrNoSuchSync{ID: id}
	}
	result := *state
	return &result, nil
}

func (syncer *memSynchronizer) ID() string {
	return syncer.id
}

func (syncer *memSynchronizer) Run() <-chan mediamanager.SyncEvent {
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

// update changes the stored state under the global lock, returning
// a copy of the new state.
func (syncer *memSynchronizer) update(f func(*mediamanager.SyncState)) mediamanager.SyncState {
	syncer.s.globalLock()
	defer syncer.s.globalUnlock()
	state := syncer.s.syncs[syncer.id]
	f(state)
	return *state
}

func (syncer *memSynchronizer) run(events chan<- mediamanager.SyncEvent) {
	defer close(events)
	clk := syncer.s.clock

	state := syncer.update(func(st *mediamanager.SyncState) {
		st.Status = mediamanager.SyncStarted
		st.StartedAt = clk.Now()
	})
	events <- mediamanager.SyncEvent{Kind: mediamanager.SyncStartedEvent, State: state}

	state = syncer.update(func(st *mediamanager.SyncState) {
		st.DocsRead = len(syncer.s.images) + len(syncer.s.batches)
	})
	events <- mediamanager.SyncEvent{Kind: mediamanager.SyncProgressEvent, State: state}

	state = syncer.update(func(st *mediamanager.SyncState) {
		st.Status = mediamanager.SyncCompleted
		st.CompletedAt = clk.Now()
	})
	events <- mediamanager.SyncEvent{Kind: mediamanager.SyncCompletedEvent, State: state}
}

type memFeed struct {
	s         *memService
	id        string
	since     int64
	appID     string
	done      chan struct{}
	closeOnce sync.Once
	listen    sync.Once
}

func (s *memService) ChangesFeed(opts mediamanager.ChangesFeedOptions) (mediamanager.ChangesFeed, error) {
	s.globalLock()
	defer s.globalUnlock()

	since := opts.Since
	if since == 0 {
		since = s.seq
	} else if since < 0 {
		since = 0
	}
	return &memFeed{
		s:     s,
		id:    importer.NewOID(),
		since: since,
		appID: opts.AppID,
		done:  make(chan struct{}),
	}, nil
}

func (feed *memFeed) ID() string {
	return feed.id
}

func (feed *memFeed) Since() int64 {
	return feed.since
}

func (feed *memFeed) Close() error {
	feed.closeOnce.Do(func() { close(feed.done) })
	return nil
}

// matches applies the feed's application filter.
func (feed *memFeed) matches(change mediamanager.DocChange) bool {
	if feed.appID == "" {
		return true
	}
	appID, _ := change.Doc.Field("app_id")
	return appID == feed.appID
}

func (feed *memFeed) Listen() <-chan mediamanager.DocChange {
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

func (feed *memFeed) run(out chan<- mediamanager.DocChange) {
	defer close(out)
	seq := feed.since
	for {
		feed.s.globalLock()
		var pending []mediamanager.DocChange
		for _, change := range feed.s.changes {
			if change.Seq > seq && feed.matches(change) {
				pending = append(pending, change)
			}
		}
		if len(feed.s.changes) > 0 {
			seq = feed.s.changes[len(feed.s.changes)-1].Seq
		}
		changed := feed.s.changed
		feed.s.globalUnlock()

		for _, change := range pending {
			select {
			case out <- change:
			case <-feed.done:
				return
			}
		}

		select {
		case <-changed:
		case <-feed.done:
			return
		}
	}
}
