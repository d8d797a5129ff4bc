// Package tlsroots builds the certificate pool syncmesh-cli trusts when it
// talks to a server over https: the system roots plus any PEM bundles the
// operator names, typically the CA behind a self-signed server certificate.
package tlsroots
