package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	LanguageEnglish = "en"
	LanguageUrdu    = "ur"
)

const (
	BottleIssued   = "issued"
	BottleReturned = "returned"
)

const (
	OrderPaymentCash   = "cash"
	OrderPaymentCredit = "credit"

	OrderStatusCompleted = "completed"
	OrderStatusPending   = "pending"
)

const (
	PaymentCash   = "cash"
	PaymentBank   = "bank"
	PaymentMobile = "mobile"
	PaymentOther  = "other"
)

const (
	QualityNormal   = "normal"
	QualityWarning  = "warning"
	QualityCritical = "critical"
)

type Actor struct {
	UserID   string
	Username string
	Role     string
}

// RoleSatisfies reports whether role grants required. Admin includes staff.
func RoleSatisfies(role string, required string) bool {
	switch required {
	case RoleStaff:
		return role == RoleStaff || role == RoleAdmin
	case RoleAdmin:
		return role == RoleAdmin
	default:
		return false
	}
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Size         string          `json:"size"`
	Price        decimal.Decimal `json:"price"`
	IsActive     bool            `json:"isActive"`
	IsReturnable *bool           `json:"isReturnable,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    *time.Time      `json:"updatedAt,omitempty"`
	CreatedBy    string          `json:"createdBy,omitempty"`
}

// Returnable treats a missing flag as true.
func (p Product) Returnable() bool {
	return p.IsReturnable == nil || *p.IsReturnable
}

type ProductRequest struct {
	Name         string          `json:"name" validate:"required"`
	Size         string          `json:"size" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	IsReturnable *bool           `json:"isReturnable,omitempty"`
	IsActive     *bool           `json:"isActive,omitempty"`
}

type Customer struct {
	ID                string                     `json:"id"`
	Name              string                     `json:"name"`
	Phone             string                     `json:"phone"`
	Address           string                     `json:"address"`
	PreferredLanguage string                     `json:"preferredLanguage"`
	ProductPrices     map[string]decimal.Decimal `json:"productPrices"`
	OpeningBalance    decimal.Decimal            `json:"openingBalance"`
	BottlePrices      map[string]decimal.Decimal `json:"bottlePrices,omitempty"`
	CreatedAt         time.Time                  `json:"createdAt"`
	UpdatedAt         *time.Time                 `json:"updatedAt,omitempty"`
	CreatedBy         string                     `json:"createdBy,omitempty"`
}

// PriceFor resolves the unit price for product, honouring per-customer overrides.
func (c Customer) PriceFor(product Product) decimal.Decimal {
	if price, ok := c.ProductPrices[product.ID]; ok {
		return price
	}
	return product.Price
}

type CustomerRequest struct {
	Name              string                     `json:"name" validate:"required"`
	Phone             string                     `json:"phone" validate:"required,phone"`
	Address           string                     `json:"address" validate:"required"`
	PreferredLanguage string                     `json:"preferredLanguage" validate:"required"`
	ProductPrices     map[string]decimal.Decimal `json:"productPrices,omitempty"`
	OpeningBalance    *decimal.Decimal           `json:"openingBalance,omitempty"`
}

type PriceQuote struct {
	CustomerID string          `json:"customerId"`
	ProductID  string          `json:"productId"`
	Price      decimal.Decimal `json:"price"`
	Override   bool            `json:"override"`
}

type BottleTransaction struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customerId"`
	Type       string     `json:"type"`
	Quantity   int        `json:"quantity"`
	Notes      string     `json:"notes"`
	OrderID    string     `json:"orderId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	CreatedBy  string     `json:"createdBy,omitempty"`
}

const orderNotePrefix = "Order #"

// OrderNote is the note written on the bottle issue emitted by an order.
func OrderNote(orderID string) string {
	return orderNotePrefix + orderID
}

// LinkedOrderID returns the companion order of an issue event, falling back
// to the "Order #<id>" note on events written before orderId existed.
func (b BottleTransaction) LinkedOrderID() string {
	if b.OrderID != "" {
		return b.OrderID
	}
	if strings.HasPrefix(b.Notes, orderNotePrefix) {
		return strings.TrimSpace(strings.TrimPrefix(b.Notes, orderNotePrefix))
	}
	return ""
}

type BottleTransactionRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=issued returned"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

type BottleBalance struct {
	CustomerID            string `json:"customerId"`
	Issued                int    `json:"issued"`
	Returned              int    `json:"returned"`
	Outstanding           int    `json:"outstanding"`
	ReturnableOutstanding int    `json:"returnableOutstanding"`
}

type BottleSummary struct {
	TotalIssued      int `json:"totalIssued"`
	TotalReturned    int `json:"totalReturned"`
	TotalOutstanding int `json:"totalOutstanding"`
	Customers        int `json:"customers"`
}

type Order struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customerId"`
	ProductID         string          `json:"productId"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	AmountPaid        decimal.Decimal `json:"amountPaid"`
	OutstandingAmount decimal.Decimal `json:"outstandingAmount"`
	PaymentMethod     string          `json:"paymentMethod"`
	Status            string          `json:"status"`
	Notes             string          `json:"notes"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         *time.Time      `json:"updatedAt,omitempty"`
	CreatedBy         string          `json:"createdBy,omitempty"`
}

type PlaceOrderRequest struct {
	CustomerID string          `json:"customerId" validate:"required"`
	ProductID  string          `json:"productId" validate:"required"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	AmountPaid decimal.Decimal `json:"amountPaid"`
	Notes      string          `json:"notes"`
}

type PlaceOrderResult struct {
	Order             Order             `json:"order"`
	BottleTransaction BottleTransaction `json:"bottleTransaction"`
	Payment           *Payment          `json:"payment,omitempty"`
	CashBalance       decimal.Decimal   `json:"newCashBalance"`
}

type Payment struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	OrderID       string          `json:"orderId,omitempty"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
	CreatedBy     string          `json:"createdBy,omitempty"`
}

type PaymentRequest struct {
	CustomerID     string          `json:"customerId" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"paymentMethod" validate:"required,oneof=cash bank mobile other"`
	Notes          string          `json:"notes"`
	LimitToBalance bool            `json:"limitToBalance"`
}

type RecordPaymentResult struct {
	Payment     Payment         `json:"payment"`
	CashBalance decimal.Decimal `json:"newCashBalance"`
}

type AccountBalance struct {
	CustomerID     string          `json:"customerId"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	TotalOrders    decimal.Decimal `json:"totalOrders"`
	TotalPayments  decimal.Decimal `json:"totalPayments"`
	Balance        decimal.Decimal `json:"balance"`
}

type Expense struct {
	ID          string          `json:"id"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
	CreatedBy   string          `json:"createdBy,omitempty"`
}

// DisplayTitle prefers the title over the legacy category key.
func (e Expense) DisplayTitle() string {
	if strings.TrimSpace(e.Title) != "" {
		return e.Title
	}
	return e.Category
}

type ExpenseRequest struct {
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
}

type ExpenseResult struct {
	Expense     Expense         `json:"expense"`
	CashBalance decimal.Decimal `json:"newCashBalance"`
}

type ExpenseCategory struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
}

type ExpenseCategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type CashBalance struct {
	Amount      decimal.Decimal `json:"amount"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

type CashAdjustment struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"createdAt"`
	CreatedBy string          `json:"createdBy,omitempty"`
}

type CashAdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required"`
}

type CashReconciliation struct {
	Materialized decimal.Decimal `json:"materialized"`
	Recomputed   decimal.Decimal `json:"recomputed"`
	Difference   decimal.Decimal `json:"difference"`
	Applied      bool            `json:"applied"`
}

type DailyCashRecord struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Income         decimal.Decimal `json:"income"`
	Expenses       decimal.Decimal `json:"expenses"`
	Adjustments    decimal.Decimal `json:"adjustments"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"createdAt"`
	CreatedBy      string          `json:"createdBy,omitempty"`
}

type CloseDayRequest struct {
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

type WaterQualityEntry struct {
	ID        string     `json:"id"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	PH        float64    `json:"pH"`
	TDS       float64    `json:"tds"`
	Chlorine  float64    `json:"chlorine"`
	Status    string     `json:"status"`
	Alerts    []string   `json:"alerts"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
}

type WaterQualityRequest struct {
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	PH       float64 `json:"pH"`
	TDS      float64 `json:"tds"`
	Chlorine float64 `json:"chlorine"`
	Notes    string  `json:"notes"`
}

type WaterQualityRanges struct {
	PHMin            float64 `json:"pHMin"`
	PHMax            float64 `json:"pHMax"`
	TDSMax           float64 `json:"tdsMax"`
	ChlorineMin      float64 `json:"chlorineMin"`
	ChlorineMax      float64 `json:"chlorineMax"`
	WarningTolerance float64 `json:"warningTolerance"`
}

func DefaultWaterQualityRanges() WaterQualityRanges {
	return WaterQualityRanges{
		PHMin:            6.5,
		PHMax:            8.5,
		TDSMax:           300,
		ChlorineMin:      0.2,
		ChlorineMax:      2.0,
		WarningTolerance: 10,
	}
}

type AppSettings struct {
	CompanyName     string     `json:"companyName"`
	CompanyAddress  string     `json:"companyAddress"`
	CompanyPhone    string     `json:"companyPhone"`
	DefaultLanguage string     `json:"defaultLanguage"`
	CurrencySymbol  string     `json:"currencySymbol"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

func DefaultAppSettings() AppSettings {
	return AppSettings{
		CompanyName:     "Water Delivery",
		DefaultLanguage: LanguageEnglish,
		CurrencySymbol:  "Rs.",
	}
}

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	Role         string     `json:"role"`
	DisplayName  string     `json:"displayName"`
	Email        string     `json:"email"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	CreatedBy    string     `json:"createdBy,omitempty"`
}

// UserProfile is a User without its password material.
type UserProfile struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func (u User) Profile() UserProfile {
	return UserProfile{
		ID:          u.ID,
		Username:    u.Username,
		Role:        u.Role,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type UserCreateRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type UserUpdateRequest struct {
	Password    *string `json:"password,omitempty"`
	Role        *string `json:"role,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Email       *string `json:"email,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResult struct {
	User      UserProfile `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt"`
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}
