// Package mail delivers transactional email for chatd.
//
// SESMailer sends through Amazon SES using the default credential chain.
// NopMailer is substituted when mail is disabled so callers never branch on
// configuration. Delivery is fire-and-forget: callers log failures and
// continue, a lost reset email never fails the request that triggered it.
package mail
