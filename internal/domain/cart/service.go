package cart

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// ErrChangeDiscarded marks a queued offline change that was thrown away
// because the session it was made in ended.
var ErrChangeDiscarded = errors.New("offline change discarded")

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Source tells whether a cart came from the server or the local path
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Result is what every cart operation returns. Degraded is set when the
// session is authenticated but the server was unreachable, so the change was
// only applied locally and is queued until the server answers again. Dropped
// lists queued changes the server refused once it was reachable.
type Result struct {
	Source   Source   `json:"source"`
	Cart     Cart     `json:"cart"`
	Degraded bool     `json:"degraded"`
	Pending  int      `json:"pending,omitempty"`
	Dropped  []string `json:"dropped,omitempty"`
}

// Remote is the server cart API. Mutations return the server cart, or nil
// lines when the server acknowledged without sending one back.
type Remote interface {
	GetCart(ctx context.Context) ([]Line, error)
	AddItem(ctx context.Context, productID product.ID, quantity int) ([]Line, error)
	UpdateItem(ctx context.Context, productID product.ID, quantity int) ([]Line, error)
	RemoveItem(ctx context.Context, productID product.ID) ([]Line, error)
	ClearCart(ctx context.Context) ([]Line, error)
}

// Session reports whether cart calls should go to the server
type Session interface {
	Authenticated() bool
	UserID() string
	Clear()
}

// Snapshot is a consistent copy of the cart store
type Snapshot struct {
	Cart     Cart   `json:"cart"`
	Status   Status `json:"status"`
	Source   Source `json:"source"`
	Degraded bool   `json:"degraded"`
	Pending  int    `json:"pending"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"errorKind,omitempty"`
	Err      error  `json:"-"`
}

// change is one server cart call. Changes applied locally while the server
// was unreachable wait in the pending queue.
type change struct {
	op        string
	productID product.ID
	call      func(ctx context.Context) ([]Line, error)
}

func (c change) String() string {
	if c.productID == "" {
		return c.op
	}
	return c.op + " " + string(c.productID)
}

// Service is the cart store. Mutations are dispatched one at a time; reads
// never wait for an outstanding server call.
type Service struct {
	remote    Remote
	session   Session
	fallback  *Fallback
	publisher store.Publisher
	deviceID  string

	dispatch sync.Mutex

	mu       sync.RWMutex
	cart     Cart
	status   Status
	source   Source
	degraded bool
	err      error
	// pending is only changed while holding both dispatch and mu
	pending     []change
	pendingUser string
}

func NewService(remote Remote, session Session, fallback *Fallback) *Service {
	return &Service{
		remote:   remote,
		session:  session,
		fallback: fallback,
		cart:     NewCart(nil),
		status:   StatusIdle,
		source:   SourceLocal,
	}
}

// WithPublisher publishes cart activity events tagged with deviceID
func (s *Service) WithPublisher(publisher store.Publisher, deviceID string) *Service {
	s.publisher = publisher
	s.deviceID = deviceID
	return s
}

func (s *Service) DeviceID() string {
	return s.deviceID
}

func (s *Service) authenticated() bool {
	return s.remote != nil && s.session != nil && s.session.Authenticated()
}

func (s *Service) userID() string {
	if s.session == nil {
		return ""
	}
	return s.session.UserID()
}

// AddItem adds quantity units of the product described by line
func (s *Service) AddItem(ctx context.Context, line Line, quantity int) (Result, error) {
	if line.ProductID == "" {
		return s.reject(ErrInvalidProduct)
	}
	if quantity <= 0 {
		return s.reject(ErrInvalidQuantity)
	}
	line.Quantity = quantity

	event := ItemAddedToCart{ProductID: line.ProductID, Quantity: quantity, Price: line.Price, AddedAt: time.Now()}
	return s.mutate(ctx, AddLine{Line: line}, EventItemAdded, event, change{
		op:        "add item",
		productID: line.ProductID,
		call: func(ctx context.Context) ([]Line, error) {
			return s.remote.AddItem(ctx, line.ProductID, quantity)
		},
	})
}

// UpdateQuantity sets a line's quantity; quantity <= 0 removes the line
func (s *Service) UpdateQuantity(ctx context.Context, productID product.ID, quantity int) (Result, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}
	if productID == "" {
		return s.reject(ErrInvalidProduct)
	}

	event := CartItemQuantityUpdated{ProductID: productID, Quantity: quantity, UpdatedAt: time.Now()}
	return s.mutate(ctx, SetQuantity{ProductID: productID, Quantity: quantity}, EventItemQuantityUpdated, event, change{
		op:        "update quantity",
		productID: productID,
		call: func(ctx context.Context) ([]Line, error) {
			return s.remote.UpdateItem(ctx, productID, quantity)
		},
	})
}

func (s *Service) RemoveItem(ctx context.Context, productID product.ID) (Result, error) {
	if productID == "" {
		return s.reject(ErrInvalidProduct)
	}

	event := ItemRemovedFromCart{ProductID: productID, RemovedAt: time.Now()}
	return s.mutate(ctx, RemoveLine{ProductID: productID}, EventItemRemoved, event, change{
		op:        "remove item",
		productID: productID,
		call: func(ctx context.Context) ([]Line, error) {
			return s.remote.RemoveItem(ctx, productID)
		},
	})
}

func (s *Service) Clear(ctx context.Context) (Result, error) {
	event := CartCleared{ClearedAt: time.Now()}
	return s.mutate(ctx, ClearLines{}, EventCartCleared, event, change{
		op: "clear cart",
		call: func(ctx context.Context) ([]Line, error) {
			return s.remote.ClearCart(ctx)
		},
	})
}

// mutate runs one cart transition: locally when anonymous, otherwise against
// the server. When the server is unreachable the transition is applied
// locally and ch is queued.
func (s *Service) mutate(ctx context.Context, action Action, eventType string, payload any, ch change) (Result, error) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	current := s.begin()

	if !s.authenticated() {
		return s.commit(ctx, Reduce(current, action), SourceLocal, false, eventType, payload), nil
	}

	synced, dropped, err := s.flush(ctx)
	var lines []Line
	if err == nil {
		lines, err = ch.call(ctx)
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return s.abandon(ch.op, current, dropped, ctx.Err())
		case apperrors.KindOf(err) == apperrors.KindNetwork:
			log.Printf("[Cart] Server unreachable during %s, applying locally: %v", ch, err)
			s.enqueue(ch)
			res := s.commit(ctx, Reduce(current, action), SourceLocal, true, eventType, payload)
			return withDropped(res, dropped), nil
		}
		return s.fail(ch.op, current, dropped, err)
	}

	var next Cart
	switch {
	case lines != nil:
		next = Reduce(current, ReplaceLines{Lines: lines})
	case synced != nil:
		next = Reduce(Reduce(current, ReplaceLines{Lines: synced}), action)
	default:
		next = Reduce(current, action)
	}
	res := s.commit(ctx, next, SourceRemote, false, eventType, payload)
	return withDropped(res, dropped), nil
}

// flush brings the server up to date before one of its carts is accepted:
// first the lines of an unfinished merge, then the changes queued while the
// server was unreachable. Changes the server refuses are dropped and
// returned; synced is the last cart the server sent back, if any. A network
// failure stops the flush and leaves the rest queued.
func (s *Service) flush(ctx context.Context) (synced []Line, dropped []error, err error) {
	if len(s.pending) > 0 && s.pendingUser != s.userID() {
		dropped = s.discardPending("session changed")
	}

	local := s.fallback.Load(ctx)
	if len(local.Lines) > 0 {
		remaining := local.Lines
		for len(remaining) > 0 {
			l := remaining[0]
			got, callErr := s.remote.AddItem(ctx, l.ProductID, l.Quantity)
			if callErr != nil {
				if !refused(ctx, callErr) {
					err = callErr
					break
				}
				log.Printf("[Cart] Server rejected line %s during merge: %v", l.ProductID, callErr)
				dropped = append(dropped, errors.Wrapf(callErr, "merge line %s", l.ProductID))
			} else if got != nil {
				synced = got
			}
			remaining = remaining[1:]
		}

		switch {
		case len(remaining) == 0:
			s.fallback.Discard(ctx)
		case len(remaining) < len(local.Lines):
			s.fallback.Save(ctx, NewCart(remaining))
		}
		if err != nil {
			return synced, dropped, err
		}
	}

	for len(s.pending) > 0 {
		ch := s.pending[0]
		got, callErr := ch.call(ctx)
		if callErr != nil {
			if !refused(ctx, callErr) {
				return synced, dropped, callErr
			}
			log.Printf("[Cart] Server rejected queued %s: %v", ch, callErr)
			dropped = append(dropped, errors.Wrap(callErr, ch.String()))
		} else if got != nil {
			synced = got
		}
		s.mu.Lock()
		s.pending = s.pending[1:]
		s.mu.Unlock()
	}
	return synced, dropped, nil
}

// refused reports whether the server answered and turned the call down, as
// opposed to not answering or rejecting the session.
func refused(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindUnexpected:
		return true
	}
	return false
}

func (s *Service) enqueue(ch change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		s.pendingUser = s.userID()
	}
	s.pending = append(s.pending, ch)
}

// discardPending empties the queue and reports every discarded change
func (s *Service) discardPending(reason string) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []error
	for _, ch := range s.pending {
		log.Printf("[Cart] Discarding queued %s: %s", ch, reason)
		dropped = append(dropped, errors.Wrap(ErrChangeDiscarded, ch.String()))
	}
	s.pending = nil
	s.pendingUser = ""
	return dropped
}

// Fetch loads the server cart when signed in and the signed-out mirror
// otherwise. An unreachable server falls back to the account mirror.
func (s *Service) Fetch(ctx context.Context) (Result, error) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	current := s.begin()

	if !s.authenticated() {
		dropped := s.discardPending("signed out")
		res := s.settle(s.fallback.Load(ctx), SourceLocal, false)
		return withDropped(res, dropped), nil
	}

	_, dropped, err := s.flush(ctx)
	var lines []Line
	if err == nil {
		lines, err = s.remote.GetCart(ctx)
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return s.abandon("fetch cart", current, dropped, ctx.Err())
		case apperrors.KindOf(err) == apperrors.KindNetwork:
			log.Printf("[Cart] Server unreachable, loading account mirror: %v", err)
			res := s.settle(s.fallback.LoadAccount(ctx, s.userID()), SourceLocal, true)
			return withDropped(res, dropped), nil
		}
		return s.fail("fetch cart", current, dropped, err)
	}

	next := Reduce(current, ReplaceLines{Lines: lines})
	res := s.commit(ctx, next, SourceRemote, false, EventCartSynced, s.syncedPayload(next))
	return withDropped(res, dropped), nil
}

// MergeLocal pushes the signed-out cart to the server after sign-in. Lines the
// server rejects are skipped and reported in the returned error; the merge
// still succeeds. If the server becomes unreachable the lines not yet pushed
// stay in the signed-out mirror and are pushed by the next server call.
func (s *Service) MergeLocal(ctx context.Context) (Result, error) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	current := s.begin()

	if !s.authenticated() {
		return s.settle(current, SourceLocal, false), nil
	}

	lines, dropped, err := s.flush(ctx)
	if err == nil && lines == nil {
		lines, err = s.remote.GetCart(ctx)
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return s.abandon("merge cart", current, dropped, ctx.Err())
		case apperrors.KindOf(err) == apperrors.KindNetwork:
			log.Printf("[Cart] Server unreachable during merge, keeping local cart: %v", err)
			res := s.commit(ctx, current, SourceLocal, true, "", nil)
			return withDropped(res, dropped), errors.Join(dropped...)
		}
		return s.fail("merge cart", current, dropped, err)
	}

	next := Reduce(current, ReplaceLines{Lines: lines})
	res := s.commit(ctx, next, SourceRemote, false, EventCartSynced, s.syncedPayload(next))
	return withDropped(res, dropped), errors.Join(dropped...)
}

func (s *Service) syncedPayload(c Cart) CartSynced {
	return CartSynced{Count: c.Count, Total: c.Total, SyncedAt: time.Now()}
}

func withDropped(res Result, dropped []error) Result {
	for _, err := range dropped {
		res.Dropped = append(res.Dropped, err.Error())
	}
	return res
}

// begin marks the store loading and returns the current cart
func (s *Service) begin() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusLoading
	s.err = nil
	return s.cart
}

// settle replaces the state without touching the mirrors
func (s *Service) settle(c Cart, source Source, degraded bool) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = c
	s.source = source
	s.degraded = degraded
	s.status = StatusSucceeded
	s.err = nil
	return Result{Source: source, Cart: c, Degraded: degraded, Pending: len(s.pending)}
}

// commit settles the state, refreshes the mirror of the current session and
// publishes eventType
func (s *Service) commit(ctx context.Context, c Cart, source Source, degraded bool, eventType string, payload any) Result {
	res := s.settle(c, source, degraded)
	if s.authenticated() {
		s.fallback.SaveAccount(ctx, s.userID(), c)
	} else {
		s.fallback.Save(ctx, c)
	}
	if eventType != "" {
		s.publish(ctx, eventType, source, payload)
	}
	return res
}

func (s *Service) fail(op string, current Cart, dropped []error, err error) (Result, error) {
	if apperrors.KindOf(err) == apperrors.KindAuth && s.session != nil {
		log.Printf("[Cart] Session rejected during %s, signing out", op)
		s.session.Clear()
	}

	s.mu.Lock()
	s.status = StatusFailed
	s.err = err
	res := Result{Source: s.source, Cart: current, Degraded: s.degraded, Pending: len(s.pending)}
	s.mu.Unlock()

	return withDropped(res, dropped), errors.Wrap(err, op)
}

// abandon ends an operation whose caller went away. Nothing is applied
// locally; the next server call resynchronizes.
func (s *Service) abandon(op string, current Cart, dropped []error, err error) (Result, error) {
	log.Printf("[Cart] %s abandoned by caller: %v", op, err)

	s.mu.Lock()
	s.status = StatusIdle
	res := Result{Source: s.source, Cart: current, Degraded: s.degraded, Pending: len(s.pending)}
	s.mu.Unlock()

	return withDropped(res, dropped), errors.Wrap(err, op)
}

// reject fails an operation before it is dispatched
func (s *Service) reject(err error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err
	return Result{Source: s.source, Cart: s.cart, Degraded: s.degraded, Pending: len(s.pending)}, err
}

func (s *Service) publish(ctx context.Context, eventType string, source Source, payload any) {
	if s.publisher == nil {
		return
	}
	userID := s.userID()
	event, err := store.NewEvent(CartKey(userID, s.deviceID), userID, s.deviceID, eventType, string(source), payload)
	if err != nil {
		log.Printf("[Cart] %v", errors.Wrapf(err, "build %s event", eventType))
		return
	}
	if err := s.publisher.Publish(ctx, event.CartKey, event); err != nil {
		log.Printf("[Cart] Failed to publish %s: %v", eventType, err)
	}
}

// Snapshot returns the current state without waiting for dispatched calls
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Cart:     s.cart,
		Status:   s.status,
		Source:   s.source,
		Degraded: s.degraded,
		Pending:  len(s.pending),
		Err:      s.err,
	}
	if s.err != nil {
		snap.Error = apperrors.MessageOf(s.err)
		snap.Kind = string(apperrors.KindOf(s.err))
	}
	return snap
}

// Acknowledge returns a settled store to idle and clears the last error
func (s *Service) Acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusSucceeded || s.status == StatusFailed {
		s.status = StatusIdle
		s.err = nil
	}
}
