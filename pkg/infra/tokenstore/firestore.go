package tokenstore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/domain/types"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the Firestore collection holding one document per session
const DefaultCollection = "mapsdrop_sessions"

type tokenDoc struct {
	AccessToken  string    `firestore:"access_token"`
	TokenType    string    `firestore:"token_type"`
	RefreshToken string    `firestore:"refresh_token"`
	Expiry       time.Time `firestore:"expiry"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

type firestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore creates a token store backed by a Firestore collection. The
// caller owns client and closes it.
func NewFirestore(client *firestore.Client, collection string) interfaces.TokenStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &firestoreStore{
		client:     client,
		collection: collection,
	}
}

func (x *firestoreStore) doc(sid types.SessionID) *firestore.DocumentRef {
	return x.client.Collection(x.collection).Doc(sid.String())
}

func (x *firestoreStore) Get(ctx context.Context, sid types.SessionID) (*oauth2.Token, error) {
	snap, err := x.doc(sid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get token document", goerr.V("session_id", sid))
	}

	var doc tokenDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode token document", goerr.V("session_id", sid))
	}

	return &oauth2.Token{
		AccessToken:  doc.AccessToken,
		TokenType:    doc.TokenType,
		RefreshToken: doc.RefreshToken,
		Expiry:       doc.Expiry,
	}, nil
}

func (x *firestoreStore) Put(ctx context.Context, sid types.SessionID, token *oauth2.Token) error {
	doc := &tokenDoc{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		UpdatedAt:    time.Now().UTC(),
	}
	if _, err := x.doc(sid).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put token document", goerr.V("session_id", sid))
	}
	return nil
}

func (x *firestoreStore) Delete(ctx context.Context, sid types.SessionID) error {
	if _, err := x.doc(sid).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return goerr.Wrap(err, "failed to delete token document", goerr.V("session_id", sid))
	}
	return nil
}
