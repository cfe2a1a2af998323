package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/game_store/internal/models"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterRequest struct {
	Name     string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"rol"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  uint   `json:"userId"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message     string       `json:"message"`
	User        *models.User `json:"usuario"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

type UpdateProfileRequest struct {
	Name *string `json:"nombre"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

type CreateProductRequest struct {
	Title       string           `json:"titulo"`
	Description string           `json:"descripcion"`
	Price       *decimal.Decimal `json:"precio"`
	Stock       int              `json:"stock"`
	Platform    string           `json:"plataforma"`
	Genre       string           `json:"genero"`
	ReleaseDate string           `json:"fechaLanzamiento"`
	Developer   string           `json:"desarrollador"`
	AgeRating   string           `json:"clasificacion"`
	ImageURL    string           `json:"imagenUrl"`
	CategoryID  *uint            `json:"categoriaId"`
}

type PatchProductRequest struct {
	Title       *string          `json:"titulo"`
	Description *string          `json:"descripcion"`
	Price       *decimal.Decimal `json:"precio"`
	Stock       *int             `json:"stock"`
	Platform    *string          `json:"plataforma"`
	Genre       *string          `json:"genero"`
	ReleaseDate *string          `json:"fechaLanzamiento"`
	Developer   *string          `json:"desarrollador"`
	AgeRating   *string          `json:"clasificacion"`
	ImageURL    *string          `json:"imagenUrl"`
	CategoryID  *uint            `json:"categoriaId"`
	Active      *bool            `json:"activo"`
}

type OrderItemRequest struct {
	ProductID uint `json:"productoId"`
	Quantity  int  `json:"cantidad"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	ShippingAddress *models.Address    `json:"direccionEnvio"`
	PaymentMethod   string             `json:"metodoPago"`
}

type CreateOrderResponse struct {
	Message string `json:"message"`
	OrderID uint   `json:"pedidoId"`
	Total   string `json:"total"`
}

type UpdateAddressRequest struct {
	ShippingAddress *models.Address `json:"direccionEnvio"`
}

type OrderLineView struct {
	ProductID uint   `json:"productoId"`
	Title     string `json:"titulo"`
	ImageURL  string `json:"imagenUrl"`
	Quantity  int    `json:"cantidad"`
	UnitPrice string `json:"precioUnitario"`
	Subtotal  string `json:"subtotal"`
}

type OrderView struct {
	ID                   uint               `json:"id"`
	Total                string             `json:"total"`
	Status               models.OrderStatus `json:"estado"`
	PaymentMethod        string             `json:"metodoPago"`
	ShippingAddress      models.Address     `json:"direccionEnvio"`
	GatewayTransactionID *string            `json:"idTransaccionPasarela,omitempty"`
	CreatedAt            time.Time          `json:"fecha"`
	Items                []OrderLineView    `json:"items"`
}

func NewOrderView(o models.Order) OrderView {
	v := OrderView{
		ID:                   o.ID,
		Total:                o.Total.StringFixed(2),
		Status:               o.Status,
		PaymentMethod:        o.PaymentMethod,
		ShippingAddress:      o.ShippingAddress,
		GatewayTransactionID: o.GatewayTransactionID,
		CreatedAt:            o.CreatedAt,
		Items:                make([]OrderLineView, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		lv := OrderLineView{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal.StringFixed(2),
		}
		if l.Product != nil {
			lv.Title = l.Product.Title
			lv.ImageURL = l.Product.ImageURL
		}
		v.Items = append(v.Items, lv)
	}
	return v
}

type CreatePaymentRequest struct {
	OrderID uint `json:"pedidoId"`
}

type CreatePaymentResponse struct {
	ID         string `json:"id"`
	ApproveURL string `json:"approveUrl"`
}

type CaptureResponse struct {
	Message   string             `json:"message"`
	OrderID   uint               `json:"pedidoId"`
	Status    models.OrderStatus `json:"estado"`
	CaptureID string             `json:"idTransaccionPasarela,omitempty"`
}

type AdminUpdateUserRequest struct {
	Name  *string `json:"nombre"`
	Email *string `json:"email"`
	Role  *string `json:"rol"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func NewPageMeta(page, offset, limit int, total int64) PageMeta {
	return PageMeta{
		Page:       page,
		Size:       limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
		HasPrev:    page > 1,
		HasNext:    int64(offset+limit) < total,
	}
}

type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}
