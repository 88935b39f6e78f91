package lib

import (
	"context"
	"os"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

func CreatePaymentLink(priceId string) (string, error) {
	sc := GetStripeClient()
	params := stripe.PaymentLinkCreateParams{
		LineItems: []*stripe.PaymentLinkCreateLineItemParams{
			{
				Price:    stripe.String(priceId),
				Quantity: stripe.Int64(1),
			},
		},
	}
	paymentLink, err := sc.V1PaymentLinks.Create(context.Background(), &params)
	if err != nil {
		return "", err
	}
	return paymentLink.URL, err
}

// CreateBookingPaymentLink prices a single booking and builds a payment
// link for the card channel. Amount is in the smallest currency unit.
func CreateBookingPaymentLink(name string, amount int64, currency string, bookingID string) (string, error) {
	sc := GetStripeClient()
	price, err := sc.V1Prices.Create(context.Background(), &stripe.PriceCreateParams{
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(amount),
		ProductData: &stripe.PriceCreateProductDataParams{
			Name: stripe.String(name),
		},
		Metadata: map[string]string{
			"booking_id": bookingID,
		},
	})
	if err != nil {
		return "", err
	}
	return CreatePaymentLink(price.ID)
}
