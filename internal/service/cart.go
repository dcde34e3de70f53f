package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 99

// CartService keeps cart lines for users and guest sessions.
type CartService struct {
	carts   port.CartStore
	catalog port.CatalogStore
	policy  domain.ShippingPolicy
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewCartService(carts port.CartStore, catalog port.CatalogStore, policy domain.ShippingPolicy, metrics *observability.Metrics, logger *zap.Logger) *CartService {
	return &CartService{carts: carts, catalog: catalog, policy: policy, metrics: metrics, logger: logger}
}

var errNoCartOwner = &domain.ErrValidation{Field: "session", Message: "a guest session or sign-in is required"}

// Get returns the priced cart. Anonymous callers get an empty cart.
func (s *CartService) Get(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.Get")
	defer span.End()

	if owner.IsZero() {
		return domain.BuildCart(nil, s.policy), nil
	}
	items, err := s.carts.ListCartItems(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	return domain.BuildCart(items, s.policy), nil
}

// Add puts req into the cart, merging with an existing line for the same
// product, size and color.
func (s *CartService) Add(ctx context.Context, owner domain.CartOwner, req *domain.AddCartItemRequest) (*domain.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.Add")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", req.ProductID))

	if owner.IsZero() {
		return nil, errNoCartOwner
	}
	p, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, &domain.ErrNotFound{Resource: "product", ID: req.ProductID}
	}
	if !domain.Offers(p.Sizes, req.Size) {
		return nil, &domain.ErrValidation{Field: "size", Message: "not offered for this product"}
	}
	if !domain.Offers(p.Colors, req.Color) {
		return nil, &domain.ErrValidation{Field: "color", Message: "not offered for this product"}
	}

	key := domain.LineKey{ProductID: req.ProductID, Size: req.Size, Color: req.Color}
	existing, err := s.carts.FindCartItem(ctx, owner, key)
	var nf *domain.ErrNotFound
	switch {
	case err == nil:
		qty := existing.Quantity + req.Quantity
		if err := checkQuantity(p, qty); err != nil {
			return nil, err
		}
		if _, err := s.carts.UpdateCartItemQuantity(ctx, owner, existing.ID, qty); err != nil {
			return nil, err
		}
	case errors.As(err, &nf):
		if err := checkQuantity(p, req.Quantity); err != nil {
			return nil, err
		}
		if _, err := s.carts.CreateCartItem(ctx, &domain.CartItem{
			UserID:    owner.UserID,
			SessionID: owner.SessionID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Size:      req.Size,
			Color:     req.Color,
		}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.metrics.IncrCartOp("add")
	return s.Get(ctx, owner)
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, owner domain.CartOwner, itemID string, qty int) (*domain.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if owner.IsZero() {
		return nil, errNoCartOwner
	}
	if qty <= 0 {
		return s.Remove(ctx, owner, itemID)
	}

	items, err := s.carts.ListCartItems(ctx, owner)
	if err != nil {
		return nil, err
	}
	var line *domain.CartItem
	for i := range items {
		if items[i].ID == itemID {
			line = &items[i]
			break
		}
	}
	if line == nil {
		return nil, &domain.ErrNotFound{Resource: "cart item", ID: itemID}
	}
	if line.Product == nil {
		return nil, &domain.ErrNotFound{Resource: "product", ID: line.ProductID}
	}
	if err := checkQuantity(line.Product, qty); err != nil {
		return nil, err
	}
	if _, err := s.carts.UpdateCartItemQuantity(ctx, owner, itemID, qty); err != nil {
		return nil, err
	}

	s.metrics.IncrCartOp("update")
	return s.Get(ctx, owner)
}

func (s *CartService) Remove(ctx context.Context, owner domain.CartOwner, itemID string) (*domain.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.Remove")
	defer span.End()

	if owner.IsZero() {
		return nil, errNoCartOwner
	}
	if err := s.carts.DeleteCartItem(ctx, owner, itemID); err != nil {
		return nil, err
	}
	s.metrics.IncrCartOp("remove")
	return s.Get(ctx, owner)
}

func (s *CartService) Clear(ctx context.Context, owner domain.CartOwner) error {
	ctx, span := tracer.Start(ctx, "CartService.Clear")
	defer span.End()

	if owner.IsZero() {
		return errNoCartOwner
	}
	if err := s.carts.ClearCart(ctx, owner); err != nil {
		return err
	}
	s.metrics.IncrCartOp("clear")
	return nil
}

// Merge moves the guest session's lines into the user's cart, summing
// quantities of matching lines, and empties the guest cart. It returns the
// number of guest lines merged.
func (s *CartService) Merge(ctx context.Context, userID, sessionID string) (int, error) {
	ctx, span := tracer.Start(ctx, "CartService.Merge")
	defer span.End()

	if userID == "" || sessionID == "" {
		return 0, nil
	}
	guest := domain.CartOwner{SessionID: sessionID}
	user := domain.CartOwner{UserID: userID}

	items, err := s.carts.ListCartItems(ctx, guest)
	if err != nil {
		return 0, fmt.Errorf("list guest cart: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	merged := 0
	for _, it := range domain.MergeLines(items) {
		if it.Product == nil {
			continue
		}
		existing, err := s.carts.FindCartItem(ctx, user, it.Key())
		var nf *domain.ErrNotFound
		switch {
		case err == nil:
			qty := capQuantity(it.Product, existing.Quantity+it.Quantity)
			if _, err := s.carts.UpdateCartItemQuantity(ctx, user, existing.ID, qty); err != nil {
				return merged, err
			}
		case errors.As(err, &nf):
			if _, err := s.carts.CreateCartItem(ctx, &domain.CartItem{
				UserID:    userID,
				SessionID: sessionID,
				ProductID: it.ProductID,
				Quantity:  capQuantity(it.Product, it.Quantity),
				Size:      it.Size,
				Color:     it.Color,
			}); err != nil {
				return merged, err
			}
		default:
			return merged, err
		}
		merged++
	}

	if err := s.carts.ClearCart(ctx, guest); err != nil {
		return merged, fmt.Errorf("clear guest cart: %w", err)
	}
	s.metrics.IncrCartOp("merge")
	s.logger.Info("guest cart merged",
		zap.String("user_id", userID),
		zap.Int("lines", merged),
	)
	return merged, nil
}

func checkQuantity(p *domain.Product, qty int) error {
	if qty > MaxLineQuantity {
		return &domain.ErrValidation{Field: "quantity", Message: fmt.Sprintf("at most %d per item", MaxLineQuantity)}
	}
	if !p.InStock(qty) {
		return &domain.ErrInsufficientStock{ProductID: p.ID, Available: p.StockQuantity, Requested: qty}
	}
	return nil
}

// capQuantity trims a merged quantity to the line cap and available stock,
// keeping at least one unit.
func capQuantity(p *domain.Product, qty int) int {
	if qty > MaxLineQuantity {
		qty = MaxLineQuantity
	}
	if p.StockQuantity > 0 && qty > p.StockQuantity {
		qty = p.StockQuantity
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}
