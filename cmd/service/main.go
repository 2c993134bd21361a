package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/paydesk/payments-backend/api"
	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/db"
	"github.com/paydesk/payments-backend/notifications/mailtemplates"
	"github.com/paydesk/payments-backend/notifications/smtp"
	"github.com/paydesk/payments-backend/notifications/twilio"
	"github.com/paydesk/payments-backend/stripe"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/log"
)

func main() {
	// define flags
	flag.String("host", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.StringP("secret", "s", "", "API secret used to sign the operator JWT tokens")
	flag.String("mongoURL", "", "The URL of the MongoDB server")
	flag.String("mongoDB", "paydesk", "The name of the MongoDB database")
	flag.String("logLevel", "info", "log level (debug, info, warn, error)")
	// stripe flags
	flag.String("stripeApiSecret", "", "Stripe API secret key")
	flag.String("stripeWebhookSecret", "", "Stripe webhook signing secret")
	flag.String("stripeBackendURL", "", "Stripe API URL override, for testing")
	flag.Float64("stripeRPS", stripe.DefaultRequestsPerSecond, "Stripe API requests per second")
	flag.Duration("preauthHold", stripe.DefaultPreAuthHold, "time a pre-authorization is held before it expires")
	flag.String("eventStore", "mongo", "where processed webhook event ids are kept (mongo, memory)")
	flag.Duration("eventTTL", stripe.DefaultEventTTL, "time a processed webhook event id is remembered by the memory event store")
	flag.String("bankDetailsFile", "", "YAML, JSON or TOML file with the bank details of each currency")
	// email flags
	flag.String("smtpServer", "", "SMTP server")
	flag.Int("smtpPort", 587, "SMTP port")
	flag.String("smtpUsername", "", "SMTP username")
	flag.String("smtpPassword", "", "SMTP password")
	flag.String("emailFromAddress", "", "Email service from address")
	flag.String("emailFromName", "Paydesk", "Email service from name")
	// sms flags
	flag.String("twilioAccountSid", "", "Twilio account SID")
	flag.String("twilioAuthToken", "", "Twilio auth token")
	flag.String("twilioFromNumber", "", "Twilio from phone number")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("PAYDESK")
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	secret := viper.GetString("secret")
	mongoURL := viper.GetString("mongoURL")
	mongoDB := viper.GetString("mongoDB")
	log.Init(viper.GetString("logLevel"), "stdout", nil)
	if secret == "" {
		log.Fatal("secret is required")
	}
	// stripe vars
	stripeConf := stripe.NewConfig(viper.GetString("stripeApiSecret"), viper.GetString("stripeWebhookSecret"))
	stripeConf.BackendURL = viper.GetString("stripeBackendURL")
	stripeConf.RequestsPerSecond = viper.GetFloat64("stripeRPS")
	stripeConf.PreAuthHold = viper.GetDuration("preauthHold")
	stripeConf.EventTTL = viper.GetDuration("eventTTL")
	if err := stripeConf.Validate(); err != nil {
		log.Fatalf("invalid stripe configuration: %v", err)
	}
	// bank details shown to payers
	bankTable, err := currency.LoadBankTable(viper.GetString("bankDetailsFile"))
	if err != nil {
		log.Fatalf("could not load the bank details: %v", err)
	}
	// initialize the MongoDB database
	database, err := db.New(mongoURL, mongoDB)
	if err != nil {
		log.Fatalf("could not create the MongoDB database: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []stripe.Option
	switch viper.GetString("eventStore") {
	case "mongo":
		// the webhook_events collection expires ids through its TTL index
	case "memory":
		opts = append(opts, stripe.WithEventStore(stripe.NewMemoryEventStore(ctx, stripeConf.EventTTL)))
		log.Infow("memory webhook event store created", "ttl", stripeConf.EventTTL.String())
	default:
		log.Fatalf("unknown event store %q", viper.GetString("eventStore"))
	}
	// create email notifications service if the required parameters are set
	if smtpServer := viper.GetString("smtpServer"); smtpServer != "" {
		if err := mailtemplates.Load(); err != nil {
			log.Fatalf("could not load email templates: %v", err)
		}
		mail := new(smtp.Email)
		if err := mail.New(&smtp.Config{
			FromName:     viper.GetString("emailFromName"),
			FromAddress:  viper.GetString("emailFromAddress"),
			SMTPServer:   smtpServer,
			SMTPPort:     viper.GetInt("smtpPort"),
			SMTPUsername: viper.GetString("smtpUsername"),
			SMTPPassword: viper.GetString("smtpPassword"),
		}); err != nil {
			log.Fatalf("could not create the email service: %v", err)
		}
		opts = append(opts, stripe.WithMailer(mail))
		log.Infow("email service created", "from", viper.GetString("emailFromAddress"))
	}
	// create SMS notifications service if the required parameters are set
	if accountSid := viper.GetString("twilioAccountSid"); accountSid != "" {
		sms := new(twilio.SMS)
		if err := sms.New(&twilio.Config{
			AccountSid: accountSid,
			AuthToken:  viper.GetString("twilioAuthToken"),
			FromNumber: viper.GetString("twilioFromNumber"),
		}); err != nil {
			log.Fatalf("could not create the SMS service: %v", err)
		}
		opts = append(opts, stripe.WithSMS(sms))
		log.Infow("SMS service created", "from", viper.GetString("twilioFromNumber"))
	}

	payments, err := stripe.NewService(stripeConf, database, opts...)
	if err != nil {
		log.Fatalf("could not create the payment service: %v", err)
	}
	payments.Start(ctx)
	log.Infow("payment service started",
		"preauthHold", stripeConf.PreAuthHold.String(),
		"requestsPerSecond", stripeConf.RequestsPerSecond)

	// create the local API server
	api.New(&api.Config{
		Host:      host,
		Port:      port,
		Secret:    secret,
		Payments:  payments,
		BankTable: bankTable,
	}).Start()
	// wait forever, as the server is running in a goroutine
	log.Infow("server started", "host", host, "port", port)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Infow("shutting down")
}
