package application

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"ordersystem/internal/service/product/domain"
)

type memoryProducts struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	nextID   int64
}

func (r *memoryProducts) Create(_ context.Context, p *domain.Product) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.products[p.ID] = &cp
	return p.ID, nil
}

func (r *memoryProducts) FindAll(context.Context) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for id := int64(1); id <= r.nextID; id++ {
		if p, ok := r.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryProducts) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrProductNotFound, "product %d", id)
	}
	cp := *p
	return &cp, nil
}

func (r *memoryProducts) DecreaseStock(_ context.Context, id int64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.StockQuantity < quantity {
		return domain.ErrInsufficientStock
	}
	p.StockQuantity -= quantity
	return nil
}

func (r *memoryProducts) Update(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return errors.Wrapf(domain.ErrProductNotFound, "product %d", p.ID)
	}
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

type setDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *setDedup) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *setDedup) MarkProcessed(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = true
	return nil
}

type mutexLocker struct {
	mu       sync.Mutex
	acquired []string
}

func (l *mutexLocker) Acquire(_ context.Context, key string) (func() error, error) {
	l.mu.Lock()
	l.acquired = append(l.acquired, key)
	return func() error { l.mu.Unlock(); return nil }, nil
}

func newService(t *testing.T) (*ProductService, *memoryProducts, *mutexLocker) {
	t.Helper()
	repo := &memoryProducts{products: map[int64]*domain.Product{}}
	locker := &mutexLocker{}
	svc := NewProductService(repo, &setDedup{seen: map[string]bool{}}, locker, noop.NewTracerProvider().Tracer("test"))
	return svc, repo, locker
}

func TestProductService_CreateAndRead(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, CreateProductRequest{Name: "keyboard", Category: "device", Price: 100, StockQuantity: 5}, "admin@naver.com")
	require.NoError(t, err)

	v, err := svc.Detail(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "keyboard", v.Name)
	assert.Equal(t, 5, v.StockQuantity)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Detail(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = svc.Create(ctx, CreateProductRequest{Name: "", StockQuantity: 1}, "admin@naver.com")
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
}

func TestProductService_ApplyStockUpdate_Dedupes(t *testing.T) {
	svc, repo, locker := newService(t)
	ctx := context.Background()
	id, err := svc.Create(ctx, CreateProductRequest{Name: "mouse", StockQuantity: 10}, "admin@naver.com")
	require.NoError(t, err)

	event := StockUpdateEvent{EventID: "evt-1", ProductID: id, Quantity: 3}
	require.NoError(t, svc.ApplyStockUpdate(ctx, event))
	require.NoError(t, svc.ApplyStockUpdate(ctx, event))

	p, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, p.StockQuantity, "redelivered event must be applied once")
	assert.Equal(t, []string{"product-stock-1", "product-stock-1"}, locker.acquired)
}

func TestProductService_ApplyStockUpdate_Failures(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Create(ctx, CreateProductRequest{Name: "mouse", StockQuantity: 2}, "admin@naver.com")
	require.NoError(t, err)

	err = svc.ApplyStockUpdate(ctx, StockUpdateEvent{EventID: "evt-1", ProductID: id, Quantity: 3})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	err = svc.ApplyStockUpdate(ctx, StockUpdateEvent{EventID: "evt-2", ProductID: 404, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	err = svc.ApplyStockUpdate(ctx, StockUpdateEvent{EventID: "evt-3", ProductID: id, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	// 失败的事件没有被标记，修复后重投可以成功
	repo.products[id].StockQuantity = 5
	require.NoError(t, svc.ApplyStockUpdate(ctx, StockUpdateEvent{EventID: "evt-1", ProductID: id, Quantity: 3}))
}

func TestProductService_ConcurrentUpdatesNeverGoNegative(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Create(ctx, CreateProductRequest{Name: "mouse", StockQuantity: 5}, "admin@naver.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = svc.ApplyStockUpdate(ctx, StockUpdateEvent{EventID: fmt.Sprintf("evt-%d", i), ProductID: id, Quantity: 1})
		}(i)
	}
	wg.Wait()

	p, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockQuantity)
}

func TestProductService_Update(t *testing.T) {
	svc, repo, locker := newService(t)
	ctx := context.Background()
	id, err := svc.Create(ctx, CreateProductRequest{Name: "keyboard", Category: "device", Price: 100, StockQuantity: 5}, "admin@naver.com")
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, id, UpdateProductRequest{Name: "mechanical keyboard", Category: "input", Price: 150, StockQuantity: 9}))
	assert.Equal(t, []string{"product-stock-1"}, locker.acquired)

	v, err := svc.Detail(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "mechanical keyboard", v.Name)
	assert.Equal(t, "input", v.Category)
	assert.Equal(t, 150, v.Price)
	assert.Equal(t, 9, v.StockQuantity)
	assert.Equal(t, "admin@naver.com", repo.products[id].MemberEmail)

	err = svc.Update(ctx, 404, UpdateProductRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	err = svc.Update(ctx, id, UpdateProductRequest{Name: "", StockQuantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
	assert.Equal(t, "mechanical keyboard", repo.products[id].Name)
}
