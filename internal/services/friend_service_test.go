package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
	"github.com/HammerMeetNail/lingopals/internal/notify"
	"github.com/HammerMeetNail/lingopals/internal/presence"
	"github.com/HammerMeetNail/lingopals/internal/store"
	"github.com/HammerMeetNail/lingopals/internal/testutil"
)

type recordingNotifier struct {
	mu          sync.Mutex
	transitions []models.Transition
}

func (n *recordingNotifier) Notify(ctx context.Context, t models.Transition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, t)
}

func (n *recordingNotifier) all() []models.Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Transition(nil), n.transitions...)
}

type recordingHandle struct {
	mu     sync.Mutex
	events []models.Event
}

func (h *recordingHandle) Push(e models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHandle) received() []models.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Event(nil), h.events...)
}

type failingStore struct {
	RelationshipStore
	err error
}

func (f *failingStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, f.err
}

func (f *failingStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	return nil, f.err
}

func (f *failingStore) CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	return nil, f.err
}

func (f *failingStore) ListCandidates(ctx context.Context, user *models.User) ([]models.User, error) {
	return nil, f.err
}

func seedUser(t *testing.T, st *store.MemoryStore, name, desired string) *models.User {
	t.Helper()
	return testutil.SeedUser(t, st, name, desired)
}

func newTestService(t *testing.T) (*FriendService, *store.MemoryStore, *recordingNotifier) {
	t.Helper()
	st := store.NewMemoryStore()
	n := &recordingNotifier{}
	return NewFriendService(st, n, presence.NewRegistry(), nil, nil), st, n
}

func TestFriendService_SendRequest_Self(t *testing.T) {
	svc, st, n := newTestService(t)
	u := seedUser(t, st, "ana", "french")

	_, err := svc.SendRequest(context.Background(), u.ID, u.ID)
	if !errors.Is(err, ErrCannotFriendSelf) {
		t.Fatalf("expected ErrCannotFriendSelf, got %v", err)
	}
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected invalid operation kind, got %v", err)
	}
	if len(n.all()) != 0 {
		t.Fatal("expected no notification on failure")
	}
}

func TestFriendService_SendRequest_UnknownRecipient(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := seedUser(t, st, "ana", "french")

	_, err := svc.SendRequest(context.Background(), u.ID, uuid.New())
	if !errors.Is(err, ErrUserNotFound) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFriendService_SendRequest_Success(t *testing.T) {
	svc, st, n := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")

	req, err := svc.SendRequest(context.Background(), a.ID, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.SenderID != a.ID || req.RecipientID != b.ID || req.Status != models.RequestStatusPending {
		t.Fatalf("unexpected request: %+v", req)
	}

	got := n.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].Kind != models.TransitionCreated || got[0].Actor.ID != a.ID || got[0].Actor.FullName != "ana" {
		t.Fatalf("unexpected transition: %+v", got[0])
	}
}

func TestFriendService_SendRequest_DuplicateEitherDirection(t *testing.T) {
	svc, st, _ := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")

	if _, err := svc.SendRequest(context.Background(), a.ID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SendRequest(context.Background(), a.ID, b.ID); !errors.Is(err, ErrRequestExists) {
		t.Fatalf("expected ErrRequestExists, got %v", err)
	}
	if _, err := svc.SendRequest(context.Background(), b.ID, a.ID); !errors.Is(err, ErrRequestExists) {
		t.Fatalf("expected ErrRequestExists for reverse direction, got %v", err)
	}
}

func TestFriendService_SendRequest_AlreadyFriends(t *testing.T) {
	svc, st, _ := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")

	req, _ := svc.SendRequest(context.Background(), a.ID, b.ID)
	if _, err := svc.AcceptRequest(context.Background(), req.ID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.SendRequest(context.Background(), b.ID, a.ID)
	if !errors.Is(err, ErrAlreadyFriends) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}
}

func TestFriendService_SendRequest_StoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewFriendService(&failingStore{err: boom}, nil, nil, nil, nil)

	_, err := svc.SendRequest(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestFriendService_AcceptRequest_Success(t *testing.T) {
	svc, st, n := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")
	req, _ := svc.SendRequest(context.Background(), a.ID, b.ID)

	friendship, err := svc.AcceptRequest(context.Background(), req.ID, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if friendship.Sender.ID != a.ID || friendship.Recipient.ID != b.ID {
		t.Fatalf("unexpected friendship: %+v", friendship)
	}

	for _, pair := range [][2]*models.User{{a, b}, {b, a}} {
		friends, err := svc.ListFriends(context.Background(), pair[0].ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(friends) != 1 || friends[0].ID != pair[1].ID {
			t.Fatalf("expected %s to have %s as friend, got %+v", pair[0].Username, pair[1].Username, friends)
		}
	}

	if _, err := st.GetRequest(context.Background(), req.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected request removed after accept, got %v", err)
	}

	got := n.all()
	if len(got) != 2 || got[1].Kind != models.TransitionAccepted || got[1].Actor.ID != b.ID {
		t.Fatalf("unexpected transitions: %+v", got)
	}
}

func TestFriendService_AcceptRequest_NotRecipient(t *testing.T) {
	svc, st, _ := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")
	c := seedUser(t, st, "cai", "french")
	req, _ := svc.SendRequest(context.Background(), a.ID, b.ID)

	for _, actor := range []uuid.UUID{a.ID, c.ID} {
		_, err := svc.AcceptRequest(context.Background(), req.ID, actor)
		if !errors.Is(err, ErrNotRequestRecipient) || !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrNotRequestRecipient, got %v", err)
		}
	}

	if _, err := st.GetRequest(context.Background(), req.ID); err != nil {
		t.Fatalf("expected request to remain pending, got %v", err)
	}
}

func TestFriendService_AcceptRequest_NotFound(t *testing.T) {
	svc, _, n := newTestService(t)

	_, err := svc.AcceptRequest(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
	if len(n.all()) != 0 {
		t.Fatal("expected no notification")
	}
}

func TestFriendService_AcceptRequest_Twice(t *testing.T) {
	svc, st, _ := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")
	req, _ := svc.SendRequest(context.Background(), a.ID, b.ID)

	if _, err := svc.AcceptRequest(context.Background(), req.ID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AcceptRequest(context.Background(), req.ID, b.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound on second accept, got %v", err)
	}
}

func TestFriendService_RejectRequest(t *testing.T) {
	svc, st, n := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")
	req, _ := svc.SendRequest(context.Background(), a.ID, b.ID)

	if err := svc.RejectRequest(context.Background(), req.ID, a.ID); !errors.Is(err, ErrNotRequestRecipient) {
		t.Fatalf("expected ErrNotRequestRecipient, got %v", err)
	}
	if err := svc.RejectRequest(context.Background(), req.ID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	friends, _ := svc.ListFriends(context.Background(), a.ID)
	if len(friends) != 0 {
		t.Fatalf("expected no friends after reject, got %+v", friends)
	}
	got := n.all()
	if len(got) != 2 || got[1].Kind != models.TransitionRejected || got[1].Request.SenderID != a.ID {
		t.Fatalf("unexpected transitions: %+v", got)
	}

	// The pair is free again.
	if _, err := svc.SendRequest(context.Background(), b.ID, a.ID); err != nil {
		t.Fatalf("expected new request after reject, got %v", err)
	}
}

func TestFriendService_RejectRequest_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := svc.RejectRequest(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestFriendService_CancelRequest(t *testing.T) {
	svc, st, n := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")
	req, _ := svc.SendRequest(context.Background(), a.ID, b.ID)

	if err := svc.CancelRequest(context.Background(), req.ID, b.ID); !errors.Is(err, ErrNotRequestSender) {
		t.Fatalf("expected ErrNotRequestSender, got %v", err)
	}
	if err := svc.CancelRequest(context.Background(), req.ID, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.all()) != 1 {
		t.Fatalf("expected only the create notification, got %d", len(n.all()))
	}
	out, _ := svc.ListOutgoing(context.Background(), a.ID)
	if len(out) != 0 {
		t.Fatalf("expected no outgoing requests, got %d", len(out))
	}
}

func TestFriendService_ListIncomingAndOutgoing(t *testing.T) {
	svc, st, _ := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")
	svc.SendRequest(context.Background(), a.ID, b.ID)

	in, err := svc.ListIncoming(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(in) != 1 || in[0].Sender == nil || in[0].Sender.ID != a.ID {
		t.Fatalf("unexpected incoming: %+v", in)
	}
	out, err := svc.ListOutgoing(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Recipient == nil || out[0].Recipient.ID != b.ID {
		t.Fatalf("unexpected outgoing: %+v", out)
	}
}

func TestFriendService_ListFriends_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.ListFriends(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFriendService_Recommended(t *testing.T) {
	svc, st, _ := newTestService(t)
	me := seedUser(t, st, "ana", "french")
	sent := seedUser(t, st, "ben", "french")
	received := seedUser(t, st, "cai", "french")
	none := seedUser(t, st, "dee", "french")
	friend := seedUser(t, st, "eli", "french")
	seedUser(t, st, "fay", "german")

	svc.SendRequest(context.Background(), me.ID, sent.ID)
	svc.SendRequest(context.Background(), received.ID, me.ID)
	req, _ := svc.SendRequest(context.Background(), me.ID, friend.ID)
	svc.AcceptRequest(context.Background(), req.ID, friend.ID)

	recs, err := svc.Recommended(context.Background(), me)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[uuid.UUID]models.FriendRequestStatus{
		sent.ID:     models.FriendRequestStatusSent,
		received.ID: models.FriendRequestStatusReceived,
		none.ID:     models.FriendRequestStatusNone,
	}
	if len(recs) != len(want) {
		t.Fatalf("expected %d recommendations, got %+v", len(want), recs)
	}
	for _, r := range recs {
		if want[r.ID] != r.FriendRequestStatus {
			t.Fatalf("user %s: expected %q, got %q", r.Username, want[r.ID], r.FriendRequestStatus)
		}
	}
}

func TestFriendService_Recommended_StoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewFriendService(&failingStore{err: boom}, nil, nil, nil, nil)
	if _, err := svc.Recommended(context.Background(), &models.User{ID: uuid.New()}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestFriendService_ConcurrentCreateSamePair(t *testing.T) {
	svc, st, _ := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a.ID, b.ID
			if i%2 == 1 {
				from, to = to, from
			}
			if _, err := svc.SendRequest(context.Background(), from, to); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrRequestExists) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one request to be created, got %d", succeeded)
	}
}

func TestFriendService_ConcurrentAcceptAndReject(t *testing.T) {
	svc, st, _ := newTestService(t)
	a := seedUser(t, st, "ana", "french")
	b := seedUser(t, st, "ben", "french")
	req, _ := svc.SendRequest(context.Background(), a.ID, b.ID)

	var wg sync.WaitGroup
	var acceptErr, rejectErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = svc.AcceptRequest(context.Background(), req.ID, b.ID)
	}()
	go func() {
		defer wg.Done()
		rejectErr = svc.RejectRequest(context.Background(), req.ID, b.ID)
	}()
	wg.Wait()

	if (acceptErr == nil) == (rejectErr == nil) {
		t.Fatalf("expected exactly one transition to win, accept=%v reject=%v", acceptErr, rejectErr)
	}
	friends, _ := svc.ListFriends(context.Background(), a.ID)
	if acceptErr == nil && len(friends) != 1 {
		t.Fatalf("expected friendship after winning accept, got %+v", friends)
	}
	if rejectErr == nil && len(friends) != 0 {
		t.Fatalf("expected no friendship after winning reject, got %+v", friends)
	}
}

func TestFriendService_IsOnline(t *testing.T) {
	st := store.NewMemoryStore()
	reg := presence.NewRegistry()
	svc := NewFriendService(st, nil, reg, nil, nil)
	id := uuid.New()

	if svc.IsOnline(id) {
		t.Fatal("expected offline before connect")
	}
	h := &recordingHandle{}
	reg.Connect(id, h)
	if !svc.IsOnline(id) {
		t.Fatal("expected online after connect")
	}
	reg.Disconnect(h)
	if svc.IsOnline(id) {
		t.Fatal("expected offline after disconnect")
	}

	if NewFriendService(st, nil, nil, nil, nil).IsOnline(id) {
		t.Fatal("expected offline without a presence probe")
	}
}

// A full exchange between two connected users: each sees exactly the events
// addressed to them.
func TestFriendService_EndToEndNotifications(t *testing.T) {
	st := store.NewMemoryStore()
	reg := presence.NewRegistry()
	svc := NewFriendService(st, notify.NewDispatcher(reg, nil, nil), reg, nil, nil)
	a := seedUser(t, st, "Ana", "french")
	b := seedUser(t, st, "Ben", "french")

	ha, hb := &recordingHandle{}, &recordingHandle{}
	reg.Connect(a.ID, ha)
	reg.Connect(b.ID, hb)

	req, err := svc.SendRequest(context.Background(), a.ID, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bEvents := hb.received()
	if len(bEvents) != 1 || bEvents[0].Type != string(models.TransitionCreated) {
		t.Fatalf("expected recipient to get a created event, got %+v", bEvents)
	}
	payload, ok := bEvents[0].Data.(models.RequestCreatedPayload)
	if !ok || payload.Message != "Ana sent you a friend request" || payload.Sender.ID != a.ID {
		t.Fatalf("unexpected created payload: %+v", bEvents[0].Data)
	}
	if len(ha.received()) != 0 {
		t.Fatal("expected sender to receive nothing on create")
	}

	if _, err := svc.AcceptRequest(context.Background(), req.ID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	aEvents := ha.received()
	if len(aEvents) != 1 || aEvents[0].Type != string(models.TransitionAccepted) {
		t.Fatalf("expected sender to get an accepted event, got %+v", aEvents)
	}
	accepted, ok := aEvents[0].Data.(models.RequestAcceptedPayload)
	if !ok || accepted.Message != "Ben accepted your friend request" || accepted.Friend.ID != b.ID {
		t.Fatalf("unexpected accepted payload: %+v", aEvents[0].Data)
	}
	if len(hb.received()) != 1 {
		t.Fatal("expected recipient to receive nothing on accept")
	}
}

func TestFriendService_OfflineRecipientDropsEvent(t *testing.T) {
	st := store.NewMemoryStore()
	reg := presence.NewRegistry()
	svc := NewFriendService(st, notify.NewDispatcher(reg, nil, nil), reg, nil, nil)
	a := seedUser(t, st, "Ana", "french")
	b := seedUser(t, st, "Ben", "french")

	if _, err := svc.SendRequest(context.Background(), a.ID, b.ID); err != nil {
		t.Fatalf("expected transition to succeed with offline recipient, got %v", err)
	}

	hb := &recordingHandle{}
	reg.Connect(b.ID, hb)
	if len(hb.received()) != 0 {
		t.Fatal("expected no replay of events missed while offline")
	}
}
