package channel

import (
	"context"
	"fmt"

	"github.com/example/campaign-dispatch/internal/campaign"
	"github.com/example/campaign-dispatch/internal/provider"
)

// EmailAdapter sends synchronously through the transactional email provider.
// The campaign name doubles as the subject line.
type EmailAdapter struct {
	Client *provider.EmailClient
}

func (a *EmailAdapter) Send(ctx context.Context, cmp *campaign.Campaign, cust campaign.Customer, content string) (Receipt, error) {
	if cust.Email == "" {
		return Receipt{}, fmt.Errorf("%w: customer has no email address", ErrMissingContact)
	}

	ref, err := a.Client.Send(ctx, provider.EmailRequest{
		To:          cust.Email,
		Subject:     cmp.Name,
		HTMLContent: content,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return Receipt{ProviderRef: ref}, nil
}
