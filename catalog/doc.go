// Package catalog defines the gateway's tools and resources on top of the
// integration adapters.
//
// For each integration with a configured backend the catalog registers a
// login tool, the integration's write tools and one resource template:
//
//	issuetracker  login-issuetracker, create-issue, update-issue   issuetracker://items/{id}
//	calendar      login-calendar, create-meeting                    calendar://events/{id}
//	docs          login-docs, create-doc                            docs://documents/{id}
//
// Reading a template's collection URI (the template without its {id}
// segment) lists items instead of fetching one. Document collections accept
// a ?query= parameter that is passed to the search API.
//
// Every handler resolves the session's credential bundle first and fails
// with a login_required error when it is absent; no adapter is built in that
// case. Input is validated next, and only then is a fresh adapter constructed
// from the bundle for the single call being served. Handlers return errors
// from the integration taxonomy and leave their wire representation to the
// protocol engine.
package catalog
