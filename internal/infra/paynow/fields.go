package paynow

import (
	"net/url"
	"strings"
)

// Wire field names.
const (
	FieldID              = "id"
	FieldReference       = "reference"
	FieldAmount          = "amount"
	FieldAdditionalInfo  = "additionalinfo"
	FieldReturnURL       = "returnurl"
	FieldResultURL       = "resulturl"
	FieldAuthEmail       = "authemail"
	FieldTokenize        = "tokenize"
	FieldMerchantTrace   = "merchanttrace"
	FieldStatus          = "status"
	FieldMethod          = "method"
	FieldPhone           = "phone"
	FieldCardNumber      = "cardnumber"
	FieldCardName        = "cardname"
	FieldCardCVV         = "cardcvv"
	FieldCardExpiry      = "cardexpiry"
	FieldBillingLine1    = "billingline1"
	FieldBillingLine2    = "billingline2"
	FieldBillingCity     = "billingcity"
	FieldBillingProvince = "billingprovince"
	FieldBillingCountry  = "billingcountry"
	FieldToken           = "token"
	FieldTokenExpiry     = "tokenexpiry"
	FieldHash            = "hash"

	FieldBrowserURL      = "browserurl"
	FieldPollURL         = "pollurl"
	FieldPaynowReference = "paynowreference"
	FieldInstructions    = "instructions"
	FieldError           = "error"
)

// Outgoing status value on every merchant message.
const statusMessage = "Message"

type MessageKind int

const (
	MessageInitiate MessageKind = iota + 1
	MessageRemote
	MessageTrace
)

func (k MessageKind) String() string {
	switch k {
	case MessageInitiate:
		return "initiate"
	case MessageRemote:
		return "remote"
	case MessageTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Endpoint is the path under the gateway interface base URL.
func (k MessageKind) Endpoint() string {
	switch k {
	case MessageInitiate:
		return "initiatetransaction"
	case MessageRemote:
		return "remotetransaction"
	case MessageTrace:
		return "trace"
	default:
		return ""
	}
}

var paymentOrder = []string{
	FieldID, FieldReference, FieldAmount, FieldAdditionalInfo, FieldReturnURL,
	FieldResultURL, FieldAuthEmail, FieldTokenize, FieldMerchantTrace, FieldStatus,
}

// canonicalOrder fixes the digest order per message. The hash is order
// sensitive, so this list is the only source of field order.
var canonicalOrder = map[MessageKind][]string{
	MessageInitiate: paymentOrder,
	MessageRemote: append(append([]string{FieldMethod}, paymentOrder...),
		FieldPhone,
		FieldCardNumber, FieldCardName, FieldCardCVV, FieldCardExpiry,
		FieldBillingLine1, FieldBillingLine2, FieldBillingCity, FieldBillingProvince, FieldBillingCountry,
		FieldToken,
	),
	MessageTrace: {FieldID, FieldMerchantTrace, FieldStatus},
}

// Field is one canonical name/value pair.
type Field struct {
	Name  string
	Value string
}

// Fields keeps wire order.
type Fields []Field

// Get returns the first value for name.
func (fs Fields) Get(name string) (string, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Values converts to url.Values for transports that want them. Order is lost.
func (fs Fields) Values() url.Values {
	v := make(url.Values, len(fs))
	for _, f := range fs {
		v.Add(f.Name, f.Value)
	}
	return v
}

// Encode renders a form body in field order. url.Values.Encode would sort.
func (fs Fields) Encode() string {
	var b strings.Builder
	for i, f := range fs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}
