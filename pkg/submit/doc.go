// Package submit sends request batches to the group search endpoint.
//
// Submissions are spaced by a ratelimit.Pacer: the starts of any two
// attempts, including retries, are at least the pacer interval apart. The
// service's "wait for the previous group request" answer is retried after
// Config.RetryInterval, without limit unless Config.MaxRateLimitRetries is
// set. Any other failure drops the batch, optionally after
// Config.MaxTransportRetries further attempts.
//
// With a Journal attached, accepted batches are recorded by content
// fingerprint so a rerun of the same roster reuses the earlier task id
// instead of submitting again.
//
// Usage:
//
//	pacer := ratelimit.NewPacer(5*time.Second, nil, logger)
//	sub := submit.New(apiClient, pacer, submit.DefaultConfig(), logger)
//	out, err := sub.Submit(ctx, batch)
package submit
