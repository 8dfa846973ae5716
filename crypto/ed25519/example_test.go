package ed25519

import "fmt"

func ExampleSigner_Sign() {
	seller := NewSigner()

	message := []byte("list song for 50 tokens")

	signature, err := seller.Sign(message)
	if err != nil {
		panic("signer failed: " + err.Error())
	}

	err = seller.GetPublicKey().Verify(message, signature)
	if err != nil {
		panic("invalid signature: " + err.Error())
	}

	fmt.Println("Success")

	// Output: Success
}
