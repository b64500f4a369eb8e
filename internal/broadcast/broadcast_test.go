package broadcast

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"promobot/internal/engage"
	"promobot/internal/storage"
	"promobot/internal/transport"
	logx "promobot/pkg/logx"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []int64
	failOn map[int64]bool
}

func (f *fakeSender) SendText(_ context.Context, to transport.ChatTarget, _ string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to.ChatID)
	if f.failOn[to.ChatID] {
		return transport.MessageRef{}, errors.New("blocked by user")
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

type campaignLister interface {
	Campaigns() []storage.CampaignRecord
}

func seed(t *testing.T, st storage.Store, id int64, stage storage.Stage) {
	t.Helper()
	now := time.Now()
	if err := st.UpsertUser(context.Background(), storage.UserRecord{UserID: id, FirstSeenAt: now, LastSeenAt: now, Stage: stage}); err != nil {
		t.Fatalf("seed user %d: %v", id, err)
	}
}

func newJob(st storage.Store, s Sender) *Job {
	sel := engage.NewSelector("@acme_sales", rand.New(rand.NewSource(1)))
	return New(st, s, sel, Config{RatePerSec: 1000}, logx.Nop())
}

func TestRunSkipsEngagedUsers(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st, 1, storage.StageNew)
	seed(t, st, 2, storage.StageEngaged)
	seed(t, st, 3, storage.StageActive)

	fs := &fakeSender{}
	if err := newJob(st, fs).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fs.sent) != 2 {
		t.Fatalf("sent to %d users, want 2: %v", len(fs.sent), fs.sent)
	}
	for _, id := range fs.sent {
		if id == 2 {
			t.Fatal("engaged user received the campaign")
		}
	}

	camps := st.(campaignLister).Campaigns()
	if len(camps) != 1 {
		t.Fatalf("got %d campaign rows, want 1", len(camps))
	}
	if camps[0].RecipientCount != 2 {
		t.Fatalf("recipient count = %d, want 2", camps[0].RecipientCount)
	}
	if camps[0].Name != "daily_promo" {
		t.Fatalf("campaign name = %q", camps[0].Name)
	}
}

func TestRunContinuesPastDeliveryFailure(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st, 1, storage.StageNew)
	seed(t, st, 2, storage.StageReturning)
	seed(t, st, 3, storage.StageActive)

	fs := &fakeSender{failOn: map[int64]bool{2: true}}
	if err := newJob(st, fs).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fs.sent) != 3 {
		t.Fatalf("attempted %d sends, want 3 (one failure must not abort the batch)", len(fs.sent))
	}
	camps := st.(campaignLister).Campaigns()
	if len(camps) != 1 || camps[0].RecipientCount != 3 {
		t.Fatalf("campaign row records attempted recipients: %+v", camps)
	}
}

func TestRunEmptyAudience(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	fs := &fakeSender{}
	if err := newJob(st, fs).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fs.sent) != 0 {
		t.Fatalf("sent %d messages, want 0", len(fs.sent))
	}
	camps := st.(campaignLister).Campaigns()
	if len(camps) != 1 || camps[0].RecipientCount != 0 {
		t.Fatalf("expected one campaign row with zero recipients, got %+v", camps)
	}
}

type failingLister struct{ storage.Store }

func (failingLister) ListUsersInStages(context.Context, ...storage.Stage) ([]int64, error) {
	return nil, storage.ErrUnavailable
}

func TestRunPropagatesStoreFailure(t *testing.T) {
	t.Parallel()
	st := failingLister{Store: storage.NewMemory()}
	fs := &fakeSender{}
	if err := newJob(st, fs).Run(context.Background()); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if len(fs.sent) != 0 {
		t.Fatalf("sent despite store failure: %v", fs.sent)
	}
}
