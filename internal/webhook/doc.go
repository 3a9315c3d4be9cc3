// Package webhook implements the HTTP surface of the LINE webhook receiver.
//
// Every delivery is verified against its X-Line-Signature before the body is
// parsed. Only the first event of a delivery is handled; message events are
// normalized and appended to the message log, anything else is acknowledged
// and dropped.
//
// # Request Flow
//
//  1. HTTP POST arrives at the configured path (default /webhook)
//  2. Body size checked (reject with 413 if too large)
//  3. Signature verified over the raw body (reject with 403 if invalid)
//  4. Envelope decoded; events[0] selected
//  5. Message events normalized and appended to the log
//  6. Outcome counted in metrics and, when configured, written to the receipts ledger
//
// # Responses
//
//   - 200 {"status":"OK","message":...}: processed, no events, or non-message event
//   - 200 {"status":"Error","message":...}: payload or storage failure
//   - 403 {"detail":"Invalid signature"}: authentication failure
//   - 413 {"detail":"Payload too large"}: body exceeds the configured limit
//
// LINE retries deliveries that do not return 2xx, so payload and storage
// failures are acknowledged with 200 to avoid redelivery loops.
//
// # Example Usage
//
//	client, err := line.NewClient(secret, token)
//	if err != nil {
//		return err
//	}
//	server := webhook.New(cfg, client, store.New(path, logger), nil, logger)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
