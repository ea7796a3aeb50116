// Package gateway implements the authorization gateway and virtual-host
// router for Gatehouse.
//
// Every request to a fronted application passes through a fixed
// pipeline: public-path bypass, then authentication (session cookie or
// single-request bearer credentials), then the per-application
// allow-list, and only then the application's own handler. The pipeline
// order is a contract: public paths never reach authentication, and
// authorization is never skipped for non-public paths.
//
// The gateway's root domain serves the login and home pages and the
// logout endpoint.
package gateway
