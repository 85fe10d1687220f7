package main

import (
	"github.com/pragmatiks/pragma/internal/api"
	"github.com/pragmatiks/pragma/internal/config"
	"github.com/pragmatiks/pragma/internal/credentials"
)

// session bundles the resolved context, credential, and API client
// for one invocation. Resolution happens once per command, before any
// remote call.
type session struct {
	ContextName string
	Context     config.Context
	Credential  credentials.Credential
	Client      *api.Client
}

func openStore() (*config.Store, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	return config.NewStore(path), nil
}

func openCredentials() (*credentials.File, error) {
	path, err := credentials.DefaultPath()
	if err != nil {
		return nil, err
	}
	return credentials.NewFile(path), nil
}

// newSession resolves the invocation's context and, when requireAuth
// is set, its credential. Local resolution failures abort the command
// before any network traffic.
func newSession(requireAuth bool) (*session, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	name, cctx, err := store.Resolve(contextFlag)
	if err != nil {
		return nil, err
	}

	sess := &session{ContextName: name, Context: cctx}
	opts := []api.Option{api.WithLogger(logger)}
	if requireAuth {
		credsFile, err := openCredentials()
		if err != nil {
			return nil, err
		}
		cred, err := credentials.NewResolver(credsFile).Resolve(name, tokenFlag)
		if err != nil {
			return nil, err
		}
		sess.Credential = cred
		opts = append(opts, api.WithToken(cred.Token))
	}
	sess.Client = api.New(cctx.APIURL, opts...)
	return sess, nil
}
