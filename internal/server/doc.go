// Package server runs the loopback listener that receives Google's OAuth redirect during `ytpa auth login`.
//
// [StartCallbackServer] binds the configured host and port before returning, mounts an [OAuthHandler]
// on a [BasicRouter] behind [RequestLogger] and [NoStore], and hands the token to [CallbackServer.Wait].
//
// [OAuthHandler] checks the state parameter, exchanges the code and reports exactly one result.
// Later callbacks get a 400.
//
// [Middleware] runs in the order it was added: the first one is the outermost.
package server
