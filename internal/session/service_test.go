package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/db"
	"github.com/cutdesk/cutdesk-agent/internal/manifest"
	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/player"
	"github.com/cutdesk/cutdesk-agent/internal/stitch"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

func playlistOf(n int) *manifest.Playlist {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "#EXTINF:10.000,\nseg%03d.ts\n", i)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	pl, err := manifest.ParseString(b.String())
	if err != nil {
		panic(err)
	}
	return pl
}

type fakeManifests struct {
	mu         sync.Mutex
	pl         *manifest.Playlist
	fetchErr   error
	publishErr error
	published  []string
}

func (f *fakeManifests) FetchManifest(ctx context.Context) (*manifest.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.pl, nil
}

func (f *fakeManifests) PublishPlaylist(ctx context.Context, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.published = append(f.published, content)
	return "http://upstream.test/api/updated_playlist.m3u8", nil
}

type fakeThumbs struct{}

func (fakeThumbs) ThumbnailPaths(ctx context.Context, duration float64) ([]string, error) {
	return []string{"a.jpg", "b.jpg"}, nil
}

func (fakeThumbs) FetchThumbnail(ctx context.Context, path string) ([]byte, string, error) {
	return []byte(path), "image/jpeg", nil
}

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "agent.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

func newTestService(t *testing.T, repo Repository, m *fakeManifests) *Service {
	t.Helper()
	svc := NewService(Config{
		Repository: repo,
		Manifests:  m,
		NewPlayer: func(ctx context.Context, s Session) (playback.Player, error) {
			return player.NewVirtual(s.Duration), nil
		},
		FrameInterval: time.Millisecond,
	})
	t.Cleanup(svc.Shutdown)
	return svc
}

func TestOpen_UsesManifestDuration(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeManifests{pl: playlistOf(10)})

	l, err := svc.Open(context.Background(), OpenRequest{Source: "interview.mp4"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sess := l.Session()
	if !strings.HasPrefix(sess.ID, "ses-") {
		t.Errorf("id = %q", sess.ID)
	}
	if sess.Duration != 100 || sess.TrackWidthPx != DefaultTrackWidthPx {
		t.Errorf("session = %+v", sess)
	}
	if sess.TickIntervalMinutes != int(timeline.DefaultInterval) {
		t.Errorf("tick interval = %d", sess.TickIntervalMinutes)
	}

	stored, err := repo.GetSession(context.Background(), sess.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetSession() = %v, %v", stored, err)
	}
	if stored.Source != "interview.mp4" {
		t.Errorf("stored source = %q", stored.Source)
	}

	if _, err := svc.Get(sess.ID); err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if got := svc.Stats(); got.Sessions != 1 || got.Ranges != 0 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestOpen_ManifestUnavailable(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeManifests{fetchErr: errors.New("connection refused")})

	if _, err := svc.Open(context.Background(), OpenRequest{Source: "x"}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("Open() error = %v, want ErrUpstream", err)
	}

	l, err := svc.Open(context.Background(), OpenRequest{Source: "x", Duration: 42})
	if err != nil {
		t.Fatalf("Open() with duration error = %v", err)
	}
	if l.Session().Duration != 42 || l.Playlist() != nil {
		t.Errorf("session = %+v, playlist = %v", l.Session(), l.Playlist())
	}
}

func TestOpen_RejectsNonFiniteDuration(t *testing.T) {
	nan := &manifest.Playlist{Segments: []manifest.Segment{
		{URI: "a.ts", Duration: math.NaN(), AccumulatedEnd: math.NaN()},
	}}
	svc := newTestService(t, newTestRepo(t), &fakeManifests{pl: nan})

	if _, err := svc.Open(context.Background(), OpenRequest{Source: "x"}); !errors.Is(err, ErrNoDuration) {
		t.Errorf("Open() on NaN manifest error = %v, want ErrNoDuration", err)
	}
	if _, err := svc.Open(context.Background(), OpenRequest{Source: "x", Duration: math.Inf(1)}); !errors.Is(err, ErrNoDuration) {
		t.Errorf("Open() with infinite duration error = %v, want ErrNoDuration", err)
	}
	if got := svc.Stats().Sessions; got != 0 {
		t.Errorf("sessions = %d, want 0", got)
	}

	down := newTestService(t, newTestRepo(t), &fakeManifests{fetchErr: errors.New("connection refused")})
	if _, err := down.Open(context.Background(), OpenRequest{Source: "x", Duration: math.NaN()}); !errors.Is(err, ErrUpstream) {
		t.Errorf("Open() with NaN duration and no manifest error = %v, want ErrUpstream", err)
	}
}

func TestOpen_RejectsUnknownTickInterval(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeManifests{pl: playlistOf(1)})

	_, err := svc.Open(context.Background(), OpenRequest{Source: "x", TickIntervalMinutes: 7})
	if !errors.Is(err, timeline.ErrUnknownInterval) {
		t.Errorf("Open() error = %v, want ErrUnknownInterval", err)
	}
}

func TestRangeEditsArePersisted(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeManifests{pl: playlistOf(10)})
	l, err := svc.Open(context.Background(), OpenRequest{Source: "x"})
	if err != nil {
		t.Fatal(err)
	}

	r, err := l.Editor().CreateRange(10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Editor().MoveRange(r.ID, 30); err != nil {
		t.Fatal(err)
	}

	stored, err := repo.ListRanges(context.Background(), l.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].ID != r.ID || stored[0].Start != 30 || stored[0].End != 40 {
		t.Errorf("stored = %v", stored)
	}

	if err := l.Editor().RemoveRange(r.ID); err != nil {
		t.Fatal(err)
	}
	stored, _ = repo.ListRanges(context.Background(), l.ID())
	if len(stored) != 0 {
		t.Errorf("stored after remove = %v", stored)
	}
}

func TestLoad_RestoresSessionsAndRanges(t *testing.T) {
	repo := newTestRepo(t)
	m := &fakeManifests{pl: playlistOf(10)}

	first := NewService(Config{
		Repository: repo,
		Manifests:  m,
		NewPlayer: func(ctx context.Context, s Session) (playback.Player, error) {
			return player.NewVirtual(s.Duration), nil
		},
	})
	l, err := first.Open(context.Background(), OpenRequest{Source: "x", TrackWidthPx: 640})
	if err != nil {
		t.Fatal(err)
	}
	r, _ := l.Editor().CreateRange(5, 15)
	first.Shutdown()

	second := newTestService(t, repo, m)
	n, err := second.Load(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Load() = %d, %v", n, err)
	}
	restored, err := second.Get(l.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := restored.Editor().Set().Get(r.ID); !ok || got.Start != 5 || got.End != 15 {
		t.Errorf("restored range = %v, %v", got, ok)
	}
	if restored.Editor().TrackWidth() != 640 {
		t.Errorf("track width = %v", restored.Editor().TrackWidth())
	}
}

func TestLoad_SkipsSessionsWithoutPlayer(t *testing.T) {
	repo := newTestRepo(t)
	m := &fakeManifests{pl: playlistOf(3)}
	ok := newTestService(t, repo, m)
	if _, err := ok.Open(context.Background(), OpenRequest{Source: "x"}); err != nil {
		t.Fatal(err)
	}

	failing := NewService(Config{
		Repository: repo,
		Manifests:  m,
		NewPlayer: func(ctx context.Context, s Session) (playback.Player, error) {
			return nil, errors.New("no player")
		},
	})
	defer failing.Shutdown()
	n, err := failing.Load(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Load() = %d, %v", n, err)
	}
}

func TestMerge(t *testing.T) {
	repo := newTestRepo(t)
	m := &fakeManifests{pl: playlistOf(10)}
	svc := newTestService(t, repo, m)
	l, err := svc.Open(context.Background(), OpenRequest{Source: "x"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Merge(context.Background(), l.ID()); !errors.Is(err, stitch.ErrNoRanges) {
		t.Fatalf("Merge() with no ranges error = %v", err)
	}

	l.Editor().CreateRange(0, 20)
	l.Editor().CreateRange(50, 70)

	merge, err := svc.Merge(context.Background(), l.ID())
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if merge.Status != MergeStatusPublished || merge.SegmentCount != 5 || merge.Discontinuities != 1 {
		t.Errorf("merge = %+v", merge)
	}
	if merge.PlaylistURL == "" {
		t.Error("merge has no playlist url")
	}
	if len(m.published) != 1 || m.published[0] != merge.Playlist {
		t.Fatalf("published = %v", m.published)
	}
	if !strings.Contains(merge.Playlist, "#EXT-X-DISCONTINUITY\n#EXTINF:10.000,\nseg004.ts") {
		t.Errorf("playlist missing discontinuity before seg004:\n%s", merge.Playlist)
	}

	stored, err := svc.GetMerge(context.Background(), merge.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetMerge() = %v, %v", stored, err)
	}
	if stored.Playlist != merge.Playlist || stored.Status != MergeStatusPublished {
		t.Errorf("stored merge = %+v", stored)
	}

	list, err := svc.Merges(context.Background(), l.ID(), 0)
	if err != nil || len(list) != 1 {
		t.Errorf("Merges() = %v, %v", list, err)
	}
}

func TestMerge_PublishFailureIsRecorded(t *testing.T) {
	repo := newTestRepo(t)
	m := &fakeManifests{pl: playlistOf(10), publishErr: errors.New("HTTP 503")}
	svc := newTestService(t, repo, m)
	l, _ := svc.Open(context.Background(), OpenRequest{Source: "x"})
	l.Editor().CreateRange(0, 30)

	merge, err := svc.Merge(context.Background(), l.ID())
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Merge() error = %v, want ErrUpstream", err)
	}
	if merge == nil || merge.Status != MergeStatusFailed {
		t.Fatalf("merge = %+v", merge)
	}

	stored, _ := repo.GetMerge(context.Background(), merge.ID)
	if stored == nil || stored.Status != MergeStatusFailed || !strings.Contains(stored.Error, "503") {
		t.Errorf("stored merge = %+v", stored)
	}
	if l.Editor().Set().Len() != 1 {
		t.Error("failed publish changed the range set")
	}
}

func TestReloadManifest_UpdatesDuration(t *testing.T) {
	repo := newTestRepo(t)
	m := &fakeManifests{pl: playlistOf(10)}
	svc := newTestService(t, repo, m)
	l, _ := svc.Open(context.Background(), OpenRequest{Source: "x"})

	m.mu.Lock()
	m.pl = playlistOf(12)
	m.mu.Unlock()

	if err := svc.ReloadManifest(context.Background()); err != nil {
		t.Fatalf("ReloadManifest() error = %v", err)
	}
	if got := l.Session().Duration; got != 120 {
		t.Errorf("duration = %v, want 120", got)
	}
	if got := l.Editor().Set().Duration(); got != 120 {
		t.Errorf("set duration = %v, want 120", got)
	}
	if got := len(l.Playlist().Segments); got != 12 {
		t.Errorf("segments = %d", got)
	}
	stored, _ := repo.GetSession(context.Background(), l.ID())
	if stored.Duration != 120 {
		t.Errorf("stored duration = %v", stored.Duration)
	}
}

func TestReloadManifest_ShorterMediaTrimsRanges(t *testing.T) {
	repo := newTestRepo(t)
	m := &fakeManifests{pl: playlistOf(12)}
	svc := newTestService(t, repo, m)
	l, _ := svc.Open(context.Background(), OpenRequest{Source: "x"})
	ed := l.Editor()
	keep, _ := ed.CreateRange(10, 20)
	cut, _ := ed.CreateRange(50, 70)
	gone, _ := ed.CreateRange(100, 110)

	m.mu.Lock()
	m.pl = playlistOf(6)
	m.mu.Unlock()
	if err := svc.ReloadManifest(context.Background()); err != nil {
		t.Fatalf("ReloadManifest() error = %v", err)
	}

	if got := l.Session().Duration; got != 60 {
		t.Errorf("duration = %v, want 60", got)
	}
	if err := ed.Set().Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if _, ok := ed.Set().Get(gone.ID); ok {
		t.Error("range past the new end survived")
	}
	if r, _ := ed.Set().Get(cut.ID); r.End != 60 {
		t.Errorf("cut range = %+v, want end 60", r)
	}

	stored, err := repo.ListRanges(context.Background(), l.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[0].ID != keep.ID || stored[1].End != 60 {
		t.Errorf("stored ranges = %+v", stored)
	}
}

func TestReloadManifest_KeepsPinnedDuration(t *testing.T) {
	repo := newTestRepo(t)
	m := &fakeManifests{pl: playlistOf(10)}
	svc := newTestService(t, repo, m)
	pinned, _ := svc.Open(context.Background(), OpenRequest{Source: "x", Duration: 90})
	pinned.Editor().CreateRange(70, 85)
	follower, _ := svc.Open(context.Background(), OpenRequest{Source: "y"})

	if !pinned.Session().DurationPinned || follower.Session().DurationPinned {
		t.Fatalf("pinned = %+v, follower = %+v", pinned.Session(), follower.Session())
	}

	m.mu.Lock()
	m.pl = playlistOf(6)
	m.mu.Unlock()
	if err := svc.ReloadManifest(context.Background()); err != nil {
		t.Fatalf("ReloadManifest() error = %v", err)
	}

	if got := pinned.Session().Duration; got != 90 {
		t.Errorf("pinned duration = %v, want 90", got)
	}
	if got := pinned.Editor().Set().Len(); got != 1 {
		t.Errorf("pinned ranges = %d, want 1", got)
	}
	if got := len(pinned.Playlist().Segments); got != 6 {
		t.Errorf("pinned segments = %d, want 6", got)
	}
	if got := follower.Session().Duration; got != 60 {
		t.Errorf("follower duration = %v, want 60", got)
	}

	stored, _ := repo.GetSession(context.Background(), pinned.ID())
	if stored == nil || !stored.DurationPinned || stored.Duration != 90 {
		t.Errorf("stored pinned session = %+v", stored)
	}
}

func TestClose_DeletesSession(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeManifests{pl: playlistOf(10)})
	l, _ := svc.Open(context.Background(), OpenRequest{Source: "x"})
	l.Editor().CreateRange(0, 10)

	if err := svc.Close(context.Background(), l.ID()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := svc.Get(l.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Close error = %v", err)
	}
	if stored, _ := repo.GetSession(context.Background(), l.ID()); stored != nil {
		t.Error("session still stored")
	}
	if l.Editor().Sync().Running() {
		t.Error("position sync still running")
	}
	if err := svc.Close(context.Background(), l.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestPauseAll(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeManifests{pl: playlistOf(10)})
	a, _ := svc.Open(context.Background(), OpenRequest{Source: "a"})
	b, _ := svc.Open(context.Background(), OpenRequest{Source: "b"})
	a.Player().Play()
	b.Player().Play()

	if n := svc.PauseAll(); n != 2 {
		t.Fatalf("PauseAll() = %d, want 2", n)
	}
	for _, l := range []*Live{a, b} {
		if l.Player().(*player.Virtual).Playing() {
			t.Errorf("session %s still playing", l.ID())
		}
	}
}

func TestSetTrack(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeManifests{pl: playlistOf(10)})
	l, _ := svc.Open(context.Background(), OpenRequest{Source: "x"})

	sess, err := l.SetTrack(context.Background(), 500, timeline.Interval10)
	if err != nil {
		t.Fatal(err)
	}
	if sess.TrackWidthPx != 500 || sess.TickIntervalMinutes != 10 {
		t.Errorf("session = %+v", sess)
	}
	stored, _ := repo.GetSession(context.Background(), l.ID())
	if stored.TrackWidthPx != 500 || stored.TickIntervalMinutes != 10 {
		t.Errorf("stored = %+v", stored)
	}
	if ticks := l.Ticks(); len(ticks) == 0 || ticks[len(ticks)-1].Px > 500 {
		t.Errorf("ticks = %v", ticks)
	}
}

func TestThumbnailsLoadInBackground(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(Config{
		Repository: repo,
		Manifests:  &fakeManifests{pl: playlistOf(10)},
		Thumbnails: fakeThumbs{},
		NewPlayer: func(ctx context.Context, s Session) (playback.Player, error) {
			return player.NewVirtual(s.Duration), nil
		},
	})
	defer svc.Shutdown()

	l, err := svc.Open(context.Background(), OpenRequest{Source: "x"})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !l.Thumbnails().Ready {
		if time.Now().After(deadline) {
			t.Fatal("thumbnail strip never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
	strip := l.Thumbnails()
	if len(strip.Frames) != 2 || strip.Frames[1].Time != 50 {
		t.Errorf("strip = %+v", strip)
	}
	if data, ct, ok := l.ThumbnailImage("b.jpg"); !ok || string(data) != "b.jpg" || ct != "image/jpeg" {
		t.Errorf("ThumbnailImage() = %q, %q, %v", data, ct, ok)
	}
}
