package application

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"ordersystem/internal/pkg/circuitbreaker"
	"ordersystem/internal/service/order/domain"
	"ordersystem/internal/service/order/domain/port"
)

type fakeInventory struct {
	mu       sync.Mutex
	products map[int64]port.Product
	errs     map[int64]error
	lookups  []int64
}

func (f *fakeInventory) Lookup(_ context.Context, id int64) (port.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, id)
	if err, ok := f.errs[id]; ok {
		return port.Product{}, err
	}
	p, ok := f.products[id]
	if !ok {
		return port.Product{}, errors.Wrapf(domain.ErrProductNotFound, "product %d", id)
	}
	return p, nil
}

type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	orders  map[int64]*domain.Order
	saves   int
	saveErr error
	onSave  func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[int64]*domain.Order{}}
}

func (r *memoryRepo) Save(_ context.Context, o *domain.Order) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return 0, r.saveErr
	}
	r.nextID++
	cp := *o
	cp.ID = r.nextID
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	r.orders[cp.ID] = &cp
	if r.onSave != nil {
		r.onSave()
	}
	return cp.ID, nil
}

func (r *memoryRepo) sorted(filter func(*domain.Order) bool) []*domain.Order {
	var out []*domain.Order
	for _, o := range r.orders {
		if filter(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryRepo) FindAll(context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(*domain.Order) bool { return true }), nil
}

func (r *memoryRepo) FindByOwner(_ context.Context, email string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(o *domain.Order) bool { return o.OwnerEmail == email }), nil
}

func (r *memoryRepo) FindByID(_ context.Context, id int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id int64, from, to domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return errors.Wrapf(domain.ErrInvalidTransition, "order %d is %s", id, o.Status)
	}
	o.Status = to
	return nil
}

type stockMsg struct {
	productID int64
	quantity  int
	ctxErr    error
}

type fakeStockPublisher struct {
	mu   sync.Mutex
	msgs []stockMsg
	err  error
}

func (p *fakeStockPublisher) Publish(ctx context.Context, productID int64, quantity int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, stockMsg{productID, quantity, ctx.Err()})
	return p.err
}

type notice struct {
	recipient, actor string
	orderID          int64
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
	err     error
}

func (n *fakeNotifier) Publish(_ context.Context, recipient, actor string, orderID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{recipient, actor, orderID})
	return n.err
}

type fixture struct {
	svc       *OrderApplicationService
	inventory *fakeInventory
	repo      *memoryRepo
	stock     *fakeStockPublisher
	notifier  *fakeNotifier
	metrics   *Metrics
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	f := &fixture{
		inventory: &fakeInventory{
			products: map[int64]port.Product{
				1: {ID: 1, Name: "keyboard", StockQuantity: 5},
				2: {ID: 2, Name: "mouse", StockQuantity: 100},
				3: {ID: 3, Name: "monitor", StockQuantity: 3},
			},
			errs: map[int64]error{},
		},
		repo:     newMemoryRepo(),
		stock:    &fakeStockPublisher{},
		notifier: &fakeNotifier{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	opts := Options{
		AdminRecipient:    "admin@naver.com",
		ProcessingTimeout: time.Second,
		PublishTimeout:    time.Second,
	}
	if policy != "" {
		p, err := NewLinePolicy(policy)
		require.NoError(t, err)
		opts.Policy = p
	}
	f.svc = NewOrderApplicationService(f.repo, noop.NewTracerProvider().Tracer("test"), f.metrics,
		f.inventory, f.stock, f.notifier, opts)
	return f
}

func lines(pairs ...int) []domain.RequestedLine {
	var out []domain.RequestedLine
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.RequestedLine{ProductID: int64(pairs[i]), Quantity: pairs[i+1]})
	}
	return out
}

func TestCreateOrder_Success(t *testing.T) {
	f := newFixture(t, "")

	resp, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(1, 2, 2, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.OrderID)
	assert.Equal(t, domain.StatusOrdered, resp.Status)

	assert.Equal(t, 1, f.repo.saves)
	saved, err := f.repo.FindByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	require.Len(t, saved.Lines, 2)
	assert.Equal(t, "keyboard", saved.Lines[0].ProductName)
	assert.Equal(t, 3, saved.Lines[1].Quantity)

	require.Len(t, f.stock.msgs, 2)
	assert.Equal(t, int64(1), f.stock.msgs[0].productID)
	assert.Equal(t, 2, f.stock.msgs[0].quantity)
	assert.Equal(t, int64(2), f.stock.msgs[1].productID)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, notice{"admin@naver.com", "buyer@example.com", resp.OrderID}, f.notifier.notices[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ordersCreated))
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(1, 10),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.Equal(t, 10, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)

	assert.Zero(t, f.repo.saves)
	assert.Empty(t, f.stock.msgs)
	assert.Empty(t, f.notifier.notices)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ordersRejected.WithLabelValues("insufficient_stock")))
}

func TestCreateOrder_InsufficientStockAfterValidLines(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(1, 1, 2, 50, 3, 4, 1, 1),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(3), stockErr.ProductID)
	assert.Equal(t, "monitor", stockErr.ProductName)

	assert.Equal(t, []int64{1, 2, 3}, f.inventory.lookups)
	assert.Zero(t, f.repo.saves)
	all, err := f.svc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.stock.msgs)
	assert.Empty(t, f.notifier.notices)
}

func TestCreateOrder_SingleWidgetLine(t *testing.T) {
	f := newFixture(t, "")
	f.inventory.products[1] = port.Product{ID: 1, Name: "Widget", StockQuantity: 5}

	resp, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(1, 2),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.repo.saves)
	saved, err := f.repo.FindByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, []domain.OrderLine{{ProductID: 1, ProductName: "Widget", Quantity: 2}}, saved.Lines)

	assert.Equal(t, []stockMsg{{productID: 1, quantity: 2}}, f.stock.msgs)
	assert.Equal(t, []notice{{"admin@naver.com", "buyer@example.com", resp.OrderID}}, f.notifier.notices)
}

func TestCreateOrder_LineKeepsProductNameAfterRename(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	resp, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{OwnerEmail: "buyer@example.com", Lines: lines(1, 1)})
	require.NoError(t, err)

	f.inventory.mu.Lock()
	f.inventory.products[1] = port.Product{ID: 1, Name: "mechanical keyboard", StockQuantity: 5}
	f.inventory.mu.Unlock()

	view, err := f.svc.GetOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "keyboard", view.Lines[0].ProductName)

	// 新订单使用新名称
	resp2, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{OwnerEmail: "buyer@example.com", Lines: lines(1, 1)})
	require.NoError(t, err)
	view2, err := f.svc.GetOrder(ctx, resp2.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "mechanical keyboard", view2.Lines[0].ProductName)
}

func TestCreateOrder_ExactStockIsAccepted(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(1, 5),
	})
	require.NoError(t, err)
}

func TestCreateOrder_StopsAtFirstFailingLine(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(2, 1, 99, 1, 3, 1),
	})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, []int64{2, 99}, f.inventory.lookups)
	assert.Zero(t, f.repo.saves)
}

func TestCreateOrder_CircuitOpen(t *testing.T) {
	f := newFixture(t, "")
	f.inventory.errs[1] = circuitbreaker.ErrCircuitOpen

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(1, 1),
	})
	require.ErrorIs(t, err, domain.ErrInventoryUnavailable)
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Zero(t, f.repo.saves)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ordersRejected.WithLabelValues("circuit_open")))
}

func TestCreateOrder_UnclassifiedLookupErrorIsUnavailable(t *testing.T) {
	f := newFixture(t, "")
	f.inventory.errs[2] = errors.New("connection reset")

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(2, 1),
	})
	require.ErrorIs(t, err, domain.ErrInventoryUnavailable)
}

func TestCreateOrder_InvalidInput(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{OwnerEmail: "buyer@example.com"})
	require.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(2, 0),
	})
	require.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = f.svc.CreateOrder(context.Background(), &CreateOrderRequest{Lines: lines(2, 1)})
	require.ErrorIs(t, err, domain.ErrInvalidOrder)

	// 非法的商品 id 不会发到库存服务，也就不会影响熔断器
	for _, id := range []int{0, -3} {
		_, err = f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
			OwnerEmail: "buyer@example.com",
			Lines:      lines(id, 1),
		})
		require.ErrorIs(t, err, domain.ErrInvalidOrder)
		assert.NotErrorIs(t, err, domain.ErrInventoryUnavailable)
	}

	assert.Empty(t, f.inventory.lookups)
	assert.Zero(t, f.repo.saves)
}

func TestCreateOrder_PersistenceFailurePublishesNothing(t *testing.T) {
	f := newFixture(t, "")
	f.repo.saveErr = errors.New("deadlock found")

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(2, 1),
	})
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, f.stock.msgs)
	assert.Empty(t, f.notifier.notices)
}

func TestCreateOrder_PublishFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t, "")
	f.stock.err = domain.ErrPublishUnavailable
	f.notifier.err = domain.ErrPublishUnavailable

	resp, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(1, 1, 2, 1),
	})
	require.NoError(t, err)
	assert.NotZero(t, resp.OrderID)

	// 第一条失败后仍然尝试后续消息和通知
	assert.Len(t, f.stock.msgs, 2)
	assert.Len(t, f.notifier.notices, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.sideEffectFailures.WithLabelValues("stock_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.sideEffectFailures.WithLabelValues("notification")))
}

func TestCreateOrder_SideEffectsSurviveCallerCancellation(t *testing.T) {
	f := newFixture(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.repo.onSave = cancel

	_, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(2, 1),
	})
	require.NoError(t, err)
	require.Len(t, f.stock.msgs, 1)
	assert.NoError(t, f.stock.msgs[0].ctxErr)
	assert.Len(t, f.notifier.notices, 1)
}

func TestCreateOrder_LinePolicy(t *testing.T) {
	f := newFixture(t, "quantity <= 2")

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OwnerEmail: "buyer@example.com",
		Lines:      lines(2, 1, 2, 3),
	})
	require.ErrorIs(t, err, domain.ErrLineRejected)
	// 被拒绝的行不会调用库存服务
	assert.Equal(t, []int64{2}, f.inventory.lookups)
}

func TestReadPathsAreStable(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	for _, owner := range []string{"a@example.com", "b@example.com", "a@example.com"} {
		_, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{OwnerEmail: owner, Lines: lines(2, 1)})
		require.NoError(t, err)
	}

	first, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	second, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{first[0].ID, first[1].ID, first[2].ID})

	mine, err := f.svc.MyOrders(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(1), mine[0].ID)
	assert.Equal(t, int64(3), mine[1].ID)

	none, err := f.svc.MyOrders(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	resp, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{OwnerEmail: "a@example.com", Lines: lines(2, 1)})
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, resp.OrderID, "b@example.com")
	require.ErrorIs(t, err, domain.ErrForbidden)

	view, err := f.svc.CancelOrder(ctx, resp.OrderID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, view.Status)

	_, err = f.svc.CancelOrder(ctx, resp.OrderID, "a@example.com")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.CancelOrder(ctx, 404, "a@example.com")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	// 取消不会产生库存消息
	assert.Len(t, f.stock.msgs, 1)
}

func TestCancelOrder_ConcurrentCancelConflicts(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	resp, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{OwnerEmail: "a@example.com", Lines: lines(2, 1)})
	require.NoError(t, err)

	// 两个请求都读到了 ORDERED，只有先写入的一个成功
	stale, err := f.repo.FindByID(ctx, resp.OrderID)
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, resp.OrderID, "a@example.com")
	require.NoError(t, err)

	require.NoError(t, stale.Cancel())
	err = f.repo.UpdateStatus(ctx, resp.OrderID, domain.StatusOrdered, stale.Status)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOwnerEmailIsNormalized(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	resp, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{OwnerEmail: " A@Example.com ", Lines: lines(2, 1)})
	require.NoError(t, err)

	for _, email := range []string{"a@example.com", "A@EXAMPLE.COM", "  a@example.com"} {
		mine, err := f.svc.MyOrders(ctx, email)
		require.NoError(t, err)
		require.Len(t, mine, 1, email)
		assert.Equal(t, resp.OrderID, mine[0].ID)
	}

	_, err = f.svc.MyOrders(ctx, "   ")
	require.ErrorIs(t, err, domain.ErrInvalidOrder)

	view, err := f.svc.CancelOrder(ctx, resp.OrderID, "A@example.COM")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, view.Status)
}
