// Package strategy adapts OTP verification to the api.Pipeline.
//
// An OTP strategy reads the submitted code from the request, asks its Setup
// for the account's secret, and verifies the code:
//
//	s, err := strategy.New(func(ctx context.Context, req *api.Request, done strategy.Done) {
//	    acct, err := lookupAccount(ctx, req.Principal)
//	    done(acct, err)
//	}, strategy.WithWindow(1))
//
// A lookup error yields an error outcome, a wrong code a failure outcome
// and a matching code a success for the account. After an HOTP match the
// configured CounterSink receives the new counter floor.
//
// NewWithStore wires both ends to a store.Store.
package strategy
