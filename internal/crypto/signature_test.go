package crypto

import (
	"bytes"
	"testing"
)

func TestGenerateMLDSAKeyPair(t *testing.T) {
	kp, err := GenerateMLDSAKeyPair()
	if err != nil {
		t.Fatalf("GenerateMLDSAKeyPair failed: %v", err)
	}
	if kp.PublicKey == nil {
		t.Error("PublicKey is nil")
	}
	if kp.PrivateKey == nil {
		t.Error("PrivateKey is nil")
	}
}

func TestMLDSAKeyPairBytes(t *testing.T) {
	kp, err := GenerateMLDSAKeyPair()
	if err != nil {
		t.Fatalf("GenerateMLDSAKeyPair failed: %v", err)
	}

	pubBytes := kp.PublicKeyBytes()
	if len(pubBytes) != MLDSAPublicKeySize {
		t.Errorf("PublicKeyBytes len = %v, want %v", len(pubBytes), MLDSAPublicKeySize)
	}

	privBytes := kp.PrivateKeyBytes()
	if len(privBytes) != MLDSAPrivateKeySize {
		t.Errorf("PrivateKeyBytes len = %v, want %v", len(privBytes), MLDSAPrivateKeySize)
	}
}

func TestMLDSASignatureSize(t *testing.T) {
	if MLDSASignatureSize != 3309 {
		t.Errorf("MLDSASignatureSize = %v, want 3309", MLDSASignatureSize)
	}
}

func TestMLDSASignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateMLDSAKeyPair()
	if err != nil {
		t.Fatalf("GenerateMLDSAKeyPair failed: %v", err)
	}

	msg := []byte("header bytes to be signed")
	sig, err := MLDSASign(kp.PrivateKey, msg, "zkim-header-sig-v1")
	if err != nil {
		t.Fatalf("MLDSASign failed: %v", err)
	}
	if len(sig) != MLDSASignatureSize {
		t.Fatalf("signature len = %v, want %v", len(sig), MLDSASignatureSize)
	}

	if err := MLDSAVerify(kp.PublicKey, msg, "zkim-header-sig-v1", sig); err != nil {
		t.Errorf("MLDSAVerify failed: %v", err)
	}
}

func TestMLDSAVerifyWrongContext(t *testing.T) {
	kp, _ := GenerateMLDSAKeyPair()
	msg := []byte("payload")
	sig, err := MLDSASign(kp.PrivateKey, msg, "zkim-header-sig-v1")
	if err != nil {
		t.Fatalf("MLDSASign failed: %v", err)
	}

	if err := MLDSAVerify(kp.PublicKey, msg, "zkim-metadata-sig-v1", sig); err != ErrInvalidSignature {
		t.Errorf("MLDSAVerify(wrong ctx) error = %v, want ErrInvalidSignature", err)
	}
}

func TestMLDSAVerifyTamperedMessage(t *testing.T) {
	kp, _ := GenerateMLDSAKeyPair()
	sig, err := MLDSASign(kp.PrivateKey, []byte("original"), "zkim-header-sig-v1")
	if err != nil {
		t.Fatalf("MLDSASign failed: %v", err)
	}

	if err := MLDSAVerify(kp.PublicKey, []byte("tampered"), "zkim-header-sig-v1", sig); err != ErrInvalidSignature {
		t.Errorf("MLDSAVerify(tampered) error = %v, want ErrInvalidSignature", err)
	}
}

func TestMLDSAVerifyWrongKey(t *testing.T) {
	kp1, _ := GenerateMLDSAKeyPair()
	kp2, _ := GenerateMLDSAKeyPair()

	sig, err := MLDSASign(kp1.PrivateKey, []byte("payload"), "zkim-header-sig-v1")
	if err != nil {
		t.Fatalf("MLDSASign failed: %v", err)
	}

	if err := MLDSAVerify(kp2.PublicKey, []byte("payload"), "zkim-header-sig-v1", sig); err != ErrInvalidSignature {
		t.Errorf("MLDSAVerify(wrong key) error = %v, want ErrInvalidSignature", err)
	}
}

func TestMLDSAVerifyInvalidSignatureLength(t *testing.T) {
	kp, _ := GenerateMLDSAKeyPair()
	if err := MLDSAVerify(kp.PublicKey, []byte("payload"), "zkim-header-sig-v1", make([]byte, 10)); err != ErrInvalidSignature {
		t.Errorf("MLDSAVerify(short sig) error = %v, want ErrInvalidSignature", err)
	}
}

func TestMLDSAKeyPairUniqueness(t *testing.T) {
	kp1, _ := GenerateMLDSAKeyPair()
	kp2, _ := GenerateMLDSAKeyPair()

	if bytes.Equal(kp1.PublicKeyBytes(), kp2.PublicKeyBytes()) {
		t.Error("key pairs should be unique")
	}
}

func TestMLDSAPublicKeyFromBytesInvalid(t *testing.T) {
	if _, err := MLDSAPublicKeyFromBytes(make([]byte, 10)); err != ErrInvalidMLDSAPublicKey {
		t.Errorf("MLDSAPublicKeyFromBytes(short) error = %v, want ErrInvalidMLDSAPublicKey", err)
	}
}

func TestMLDSAPrivateKeyFromBytesInvalid(t *testing.T) {
	if _, err := MLDSAPrivateKeyFromBytes(make([]byte, 10)); err != ErrInvalidMLDSAPrivateKey {
		t.Errorf("MLDSAPrivateKeyFromBytes(short) error = %v, want ErrInvalidMLDSAPrivateKey", err)
	}
}

func TestMLDSAPublicKeyFromBytesRoundTrip(t *testing.T) {
	kp, _ := GenerateMLDSAKeyPair()
	pub, err := MLDSAPublicKeyFromBytes(kp.PublicKeyBytes())
	if err != nil {
		t.Fatalf("MLDSAPublicKeyFromBytes failed: %v", err)
	}

	sig, err := MLDSASign(kp.PrivateKey, []byte("payload"), "zkim-header-sig-v1")
	if err != nil {
		t.Fatalf("MLDSASign failed: %v", err)
	}
	if err := MLDSAVerify(pub, []byte("payload"), "zkim-header-sig-v1", sig); err != nil {
		t.Errorf("MLDSAVerify with parsed key failed: %v", err)
	}
}
