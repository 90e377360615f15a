package twilio

import (
	"errors"

	"github.com/secureher/secureher/server/logger"
	"github.com/secureher/secureher/shared"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned when a message send is attempted without
// account credentials & a sender number in the server config.
var ErrNotConfigured = errors.New("twilio is not configured correctly")

var logg = logger.NewLogger()

type ClientWrapper struct {
	client   *twilio.RestClient
	config   shared.TwilioConfig
	testMode bool
}

// NewClient wraps the twilio rest client. In testMode no request leaves the
// process; sends are logged & succeed with a fake message sid.
func NewClient(config shared.TwilioConfig, testMode bool) *ClientWrapper {
	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{
		client:   client,
		config:   config,
		testMode: testMode,
	}
}

// SendMessage relays 'msg' to 'to' & returns the gateway message sid.
// Delivery/retry semantics past this call belong to the gateway.
func (cw *ClientWrapper) SendMessage(to, msg string) (string, error) {
	if cw.testMode {
		logg.Infof("[test mode] sms to %v: %v", to, msg)
		return "SM-test", nil
	}

	if !cw.Configured() {
		return "", ErrNotConfigured
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(cw.config.FromNumber)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return "", err
	}

	if resp.Sid == nil {
		return "", errors.New("twilio response missing message sid")
	}

	return *resp.Sid, nil
}

func (cw *ClientWrapper) Configured() bool {
	return cw.config.AccountSid != "" && cw.config.AuthToken != "" && cw.config.FromNumber != ""
}
