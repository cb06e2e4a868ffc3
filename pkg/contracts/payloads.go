package contracts

type PrintRequest struct {
	OrderData PrintOrder `json:"orderData"`
}

// PrintOrder carries the order record together with the store address and a
// human-formatted creation time, both resolved before printing.
type PrintOrder struct {
	ID                 string      `json:"id"`
	OrderNumber        string      `json:"orderNumber"`
	Status             string      `json:"status"`
	Phone              string      `json:"phone"`
	StoreID            string      `json:"storeId"`
	StoreName          string      `json:"storeName"`
	StoreAddress       string      `json:"storeAddress"`
	Amount             int64       `json:"amount"`
	Items              []PrintItem `json:"items"`
	TableNumber        string      `json:"tableNumber,omitempty"`
	SpecialRequests    string      `json:"specialRequests,omitempty"`
	PaymentID          string      `json:"paymentId,omitempty"`
	FormattedCreatedAt string      `json:"formattedCreatedAt"`
}

type PrintItem struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type PrintResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Method  string `json:"method"`
}

type SMSRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type ReversalRequest struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason"`
}

type ReversalResponse struct {
	Success    bool   `json:"success"`
	ReversalID string `json:"reversalId,omitempty"`
	Message    string `json:"message,omitempty"`
}
