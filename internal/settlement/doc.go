// Package settlement exchanges payment messages with the payment service.
//
// Publisher sends a payment request for an order to the request topic and
// reports confirmation through a callback. Consumer reads payment outcomes
// from the outcome topic and hands each one to Reconciler, which maps it to
// an order status and decides whether the message is committed, dropped or
// redelivered.
package settlement
