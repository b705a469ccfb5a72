// Command register-ipn registers the service's payment notification URL with
// the gateway and prints the IPN id to put in GATEWAY_IPN_ID.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/JayKadi/ecommerce-project/config"
	"github.com/JayKadi/ecommerce-project/gateway"
	"github.com/JayKadi/ecommerce-project/telemetry"
)

func main() {
	cfg := config.LoadConfig()
	log := telemetry.NewLogger(cfg.LogLevel)

	url := flag.String("url", "", "public URL of /api/payments/verify")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if *url == "" {
		fmt.Fprintln(os.Stderr, "usage: register-ipn -url https://shop.example.com/api/payments/verify")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:        cfg.GatewayBaseURL,
		ConsumerKey:    cfg.GatewayConsumerKey,
		ConsumerSecret: cfg.GatewayConsumerSecret,
		Timeout:        cfg.GatewayTimeout,
		MaxConcurrency: 1,
	}, nil)

	reg, err := gw.RegisterIPN(ctx, *url)
	if err != nil {
		log.WithError(err).Fatal("IPN registration failed")
	}

	log.WithField("ipn_id", reg.IPNID).WithField("url", reg.URL).Info("IPN registered")
	fmt.Println(reg.IPNID)
}
