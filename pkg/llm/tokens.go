package llm

import (
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// CountTokens returns the number of tokens text occupies for the given model.
// Unknown models fall back to the cl100k_base encoding.
func CountTokens(model string, text string) (int, error) {
	codec, err := getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "encode tokens")
	}
	return len(ids), nil
}

func getCodec(model string) (tokenizer.Codec, error) {
	if model != "" {
		if c, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
			return c, nil
		}
	}
	c, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "error creating tokenizer")
	}
	return c, nil
}
