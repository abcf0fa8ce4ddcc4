package eventbus

// Registry event topics.
const (
	EventCredentialIssued = "registry:credential_issued"
	EventAddressReported  = "registry:address_reported"
	EventTxFailed         = "registry:tx_failed"
)

type CredentialIssuedData struct {
	UserID int64  `json:"user_id"`
	AppID  uint64 `json:"app_id"`
}

type AddressReportedData struct {
	AppID   uint64 `json:"app_id"`
	Address string `json:"address"`
}

// TxFailedData marks a registration transaction that did not commit even
// though the minted token was handed to the caller.
type TxFailedData struct {
	UserID int64  `json:"user_id"`
	AppID  uint64 `json:"app_id"`
	Error  string `json:"error"`
}
