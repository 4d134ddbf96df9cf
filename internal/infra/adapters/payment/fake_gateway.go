package payment

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/ports/adapter"
	"paynow-client/internal/infra/paynow"
)

var _ adapter.PaymentTransport = (*FakeGateway)(nil)

type fakeTxn struct {
	guid            string
	reference       string
	paynowReference string
	amount          string
	merchantTrace   string
	status          string
}

// FakeGateway is an in-memory Paynow used by tests and the demo. It checks
// the hash of every request and signs every reply with the same key.
type FakeGateway struct {
	mu      sync.Mutex
	key     paynow.IntegrationKey
	id      string
	base    string
	seq     int
	byGUID  map[string]*fakeTxn
	byRef   map[string]*fakeTxn
	Calls   []string // endpoints in call order
	FailNow error    // when set, the next Post returns it
}

func NewFakeGateway(id string, key paynow.IntegrationKey) *FakeGateway {
	return &FakeGateway{
		key:    key,
		id:     id,
		base:   "https://fake.paynow.test",
		byGUID: make(map[string]*fakeTxn),
		byRef:  make(map[string]*fakeTxn),
	}
}

func (g *FakeGateway) Name() string { return "fake" }

// SetStatus moves the gateway-side status of reference, e.g. to "Paid".
func (g *FakeGateway) SetStatus(reference, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.byRef[reference]
	if !ok {
		return domain.ErrNotFound
	}
	t.status = status
	return nil
}

// StatusUpdate renders the signed body the gateway would post to the result URL.
func (g *FakeGateway) StatusUpdate(reference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.byRef[reference]
	if !ok {
		return "", domain.ErrNotFound
	}
	return g.statusFields(t).Encode(), nil
}

func (g *FakeGateway) Post(ctx context.Context, endpoint string, form string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Calls = append(g.Calls, endpoint)
	if g.FailNow != nil {
		err := g.FailNow
		g.FailNow = nil
		return nil, err
	}

	if strings.HasPrefix(endpoint, "http") {
		return g.poll(endpoint)
	}

	fields, err := paynow.DecodeBody([]byte(form))
	if err != nil {
		return errorReply("Invalid request."), nil
	}
	if id, _ := fields.Get(paynow.FieldID); id != g.id {
		return errorReply("Invalid Id."), nil
	}
	if err := paynow.Verify(fields, g.key); err != nil {
		return errorReply("Invalid Hash."), nil
	}

	switch {
	case endpoint == paynow.MessageInitiate.Endpoint():
		t := g.create(fields)
		return g.reply(
			paynow.Field{Name: paynow.FieldStatus, Value: "Ok"},
			paynow.Field{Name: paynow.FieldBrowserURL, Value: g.base + "/Payment/ConfirmPayment/" + t.guid},
			paynow.Field{Name: paynow.FieldPollURL, Value: g.pollURL(t)},
		), nil
	case endpoint == paynow.MessageRemote.Endpoint():
		t := g.create(fields)
		method, _ := fields.Get(paynow.FieldMethod)
		return g.reply(
			paynow.Field{Name: paynow.FieldStatus, Value: "Ok"},
			paynow.Field{Name: paynow.FieldInstructions, Value: "Approve the " + method + " prompt on your phone"},
			paynow.Field{Name: paynow.FieldPaynowReference, Value: t.paynowReference},
			paynow.Field{Name: paynow.FieldPollURL, Value: g.pollURL(t)},
		), nil
	case endpoint == paynow.MessageTrace.Endpoint():
		trace, _ := fields.Get(paynow.FieldMerchantTrace)
		for _, t := range g.byRef {
			if t.merchantTrace != "" && t.merchantTrace == trace {
				return []byte(g.statusFields(t).Encode()), nil
			}
		}
		return g.reply(paynow.Field{Name: paynow.FieldStatus, Value: "NotFound"}), nil
	default:
		return nil, fmt.Errorf("%w: %s returned HTTP 404", domain.ErrTransport, endpoint)
	}
}

func (g *FakeGateway) poll(endpoint string) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: bad poll url", domain.ErrTransport)
	}
	t, ok := g.byGUID[u.Query().Get("guid")]
	if !ok {
		return nil, fmt.Errorf("%w: poll url returned HTTP 404", domain.ErrTransport)
	}
	return []byte(g.statusFields(t).Encode()), nil
}

func (g *FakeGateway) create(fields paynow.Fields) *fakeTxn {
	ref, _ := fields.Get(paynow.FieldReference)
	if t, ok := g.byRef[ref]; ok {
		return t
	}
	g.seq++
	amount, _ := fields.Get(paynow.FieldAmount)
	trace, _ := fields.Get(paynow.FieldMerchantTrace)
	t := &fakeTxn{
		guid:            uuid.NewString(),
		reference:       ref,
		paynowReference: strconv.Itoa(100000 + g.seq),
		amount:          amount,
		merchantTrace:   trace,
		status:          "Sent",
	}
	g.byGUID[t.guid] = t
	g.byRef[ref] = t
	return t
}

func (g *FakeGateway) pollURL(t *fakeTxn) string {
	return g.base + "/Interface/CheckPayment/?guid=" + t.guid
}

func (g *FakeGateway) statusFields(t *fakeTxn) paynow.Fields {
	return paynow.Seal(paynow.Fields{
		{Name: paynow.FieldReference, Value: t.reference},
		{Name: paynow.FieldPaynowReference, Value: t.paynowReference},
		{Name: paynow.FieldAmount, Value: t.amount},
		{Name: paynow.FieldStatus, Value: t.status},
		{Name: paynow.FieldPollURL, Value: g.pollURL(t)},
	}, g.key)
}

func (g *FakeGateway) reply(fields ...paynow.Field) []byte {
	return []byte(paynow.Seal(fields, g.key).Encode())
}

func errorReply(msg string) []byte {
	return []byte(paynow.Fields{
		{Name: paynow.FieldStatus, Value: "Error"},
		{Name: paynow.FieldError, Value: msg},
	}.Encode())
}
