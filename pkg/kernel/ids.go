package kernel

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

type CategoryID string

func NewCategoryID(id string) CategoryID { return CategoryID(id) }
func (c CategoryID) String() string      { return string(c) }
func (c CategoryID) IsEmpty() bool       { return string(c) == "" }

type ProductID string

func NewProductID(id string) ProductID { return ProductID(id) }
func (p ProductID) String() string     { return string(p) }
func (p ProductID) IsEmpty() bool      { return string(p) == "" }

type CartID string

func NewCartID(id string) CartID { return CartID(id) }
func (c CartID) String() string  { return string(c) }
func (c CartID) IsEmpty() bool   { return string(c) == "" }

type OrderID string

func NewOrderID(id string) OrderID { return OrderID(id) }
func (o OrderID) String() string   { return string(o) }
func (o OrderID) IsEmpty() bool    { return string(o) == "" }

type SessionID string

func NewSessionID(id string) SessionID { return SessionID(id) }
func (s SessionID) String() string     { return string(s) }
func (s SessionID) IsEmpty() bool      { return string(s) == "" }
