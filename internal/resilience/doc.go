// Package resilience provides reliability and fault tolerance patterns for
// the feed fetcher: a circuit breaker per upstream host class and retry
// with exponential backoff for transient transport failures.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchFeed()
//	})
//
//	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	    return performOperation()
//	})
package resilience
