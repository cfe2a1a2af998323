package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPendingPayment  OrderStatus = "pending_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusCancelledByUser OrderStatus = "cancelled_by_user"
)

// Cancellable lists the statuses an order may be cancelled from.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPendingPayment || s == OrderStatusPaid
}

const PaymentMethodPayPal = "paypal"

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"         json:"id"`
	Name         string    `gorm:"size:100;not null"                json:"nombre"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"    json:"email"`
	PasswordHash string    `gorm:"size:255;not null"                json:"-"`
	Role         Role      `gorm:"size:20;not null;default:customer" json:"rol"`
	CreatedAt    time.Time `json:"fechaRegistro"`
	UpdatedAt    time.Time `json:"-"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"       json:"id"`
	Title       string          `gorm:"size:255;not null"              json:"titulo"`
	Description string          `gorm:"type:text;not null;default:''"  json:"descripcion"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"    json:"precio"`
	Stock       int             `gorm:"not null;default:0"             json:"stock"`
	Platform    string          `gorm:"size:100;not null"              json:"plataforma"`
	Genre       string          `gorm:"size:100;not null"              json:"genero"`
	ReleaseDate *time.Time      `json:"fechaLanzamiento,omitempty"`
	Developer   string          `gorm:"size:150;not null;default:''"   json:"desarrollador"`
	AgeRating   string          `gorm:"size:20;not null;default:''"    json:"clasificacion"`
	ImageURL    string          `gorm:"size:500;not null;default:''"   json:"imagenUrl"`
	CategoryID  *uint           `json:"categoriaId,omitempty"`
	Active      bool            `gorm:"not null;default:true;index"    json:"activo"`
	CreatedAt   time.Time       `json:"-"`
	UpdatedAt   time.Time       `json:"-"`
}

type Address struct {
	Street     string `json:"calle"`
	City       string `json:"ciudad"`
	PostalCode string `json:"codigoPostal"`
	Province   string `json:"provincia,omitempty"`
	Country    string `json:"pais"`
}

type Order struct {
	ID                   uint            `gorm:"primaryKey;autoIncrement"              json:"id"`
	UserID               uint            `gorm:"index;not null"                        json:"usuarioId"`
	User                 *User           `gorm:"constraint:OnDelete:RESTRICT"          json:"-"`
	Total                decimal.Decimal `gorm:"type:decimal(12,2);not null"           json:"total"`
	ShippingAddress      Address         `gorm:"serializer:json;type:text;not null"    json:"direccionEnvio"`
	PaymentMethod        string          `gorm:"size:30;not null"                      json:"metodoPago"`
	Status               OrderStatus     `gorm:"size:30;not null;index"                json:"estado"`
	GatewayOrderID       *string         `gorm:"size:64;index"                         json:"idOrdenPasarela,omitempty"`
	GatewayTransactionID *string         `gorm:"size:64"                               json:"idTransaccionPasarela,omitempty"`
	Lines                []OrderLine     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt            time.Time       `gorm:"index"                                 json:"fecha"`
	UpdatedAt            time.Time       `json:"-"`
}

type OrderLine struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"      json:"id"`
	OrderID   uint            `gorm:"index;not null"                json:"pedidoId"`
	ProductID uint            `gorm:"index;not null"                json:"productoId"`
	Product   *Product        `gorm:"constraint:OnDelete:RESTRICT"  json:"-"`
	Quantity  int             `gorm:"not null"                      json:"cantidad"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"   json:"precioUnitario"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"   json:"subtotal"`
}

// AutoMigrate creates the schema without SQL migrations (sqlite, tests).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Product{}, &Order{}, &OrderLine{})
}
