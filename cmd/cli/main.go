// Package main provides an operator CLI for the payment gateway. It mints
// operator JWT tokens signed with the API secret and, when a payment id is
// given, queries the payment status through the API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paydesk/payments-backend/api"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/log"
)

func main() {
	flag.StringP("secret", "s", "", "API secret used to sign the token (required)")
	flag.StringP("operator", "o", "", "operator id to put in the token (required)")
	flag.DurationP("expiration", "e", 12*time.Hour, "token expiration")
	flag.StringP("apiURL", "a", "http://localhost:8080", "payment gateway API URL")
	flag.StringP("payment", "i", "", "PaymentIntent id to query (optional)")
	flag.Parse()

	viper.SetEnvPrefix("PAYDESK")
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		log.Fatalf("could not bind flags: %v", err)
	}
	viper.AutomaticEnv()
	log.Init("info", "stdout", nil)

	secret := viper.GetString("secret")
	operatorID := viper.GetString("operator")
	if secret == "" {
		log.Fatal("secret is required")
	}
	if operatorID == "" {
		log.Fatal("operator is required")
	}

	token, err := api.NewOperatorToken(secret, operatorID, viper.GetDuration("expiration"))
	if err != nil {
		log.Fatalf("could not sign the token: %v", err)
	}
	paymentID := viper.GetString("payment")
	if paymentID == "" {
		fmt.Println(token.Token)
		log.Infow("token created", "operator", operatorID, "expiry", token.Expiry.Format(time.RFC3339))
		return
	}

	body, err := getPayment(viper.GetString("apiURL"), token.Token, paymentID)
	if err != nil {
		log.Fatalf("could not query payment %s: %v", paymentID, err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		log.Fatalf("invalid response: %v", err)
	}
	fmt.Println(pretty.String())
}

// getPayment queries the status of a payment through the API.
func getPayment(apiURL, token, paymentID string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, strings.TrimSuffix(apiURL, "/")+"/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnw("could not close response body", "error", err)
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
