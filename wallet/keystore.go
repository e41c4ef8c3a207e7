package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// KeyKind 密钥类型
type KeyKind string

const (
	// KeyKindPasskey P-256 通行密钥
	KeyKindPasskey KeyKind = "p256-passkey"
	// KeyKindFeePayer ed25519 费用支付方
	KeyKindFeePayer KeyKind = "ed25519-fee-payer"
)

// DefaultKDFIterations PBKDF2 默认迭代次数
const DefaultKDFIterations = 262144

// Keystore Keystore文件结构
type Keystore struct {
	Version int     `json:"version"`
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Kind    KeyKind `json:"kind"`
	Crypto  Crypto  `json:"crypto"`
}

// Crypto 加密信息
type Crypto struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

// CipherParams 加密参数
type CipherParams struct {
	IV string `json:"iv"`
}

// KDFParams PBKDF2 参数
type KDFParams struct {
	Iterations int    `json:"c"`
	DKLen      int    `json:"dklen"`
	PRF        string `json:"prf"`
	Salt       string `json:"salt"`
}

// KeystoreManager Keystore管理器
type KeystoreManager struct {
	keystoreDir string
	iterations  int
}

// NewKeystoreManager 创建Keystore管理器
func NewKeystoreManager(keystoreDir string) (*KeystoreManager, error) {
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}

	return &KeystoreManager{
		keystoreDir: keystoreDir,
		iterations:  DefaultKDFIterations,
	}, nil
}

// WithIterations 覆盖 PBKDF2 迭代次数（仅影响新保存的文件）
func (km *KeystoreManager) WithIterations(n int) *KeystoreManager {
	if n > 0 {
		km.iterations = n
	}
	return km
}

// SavePasskey 加密保存通行密钥
func (km *KeystoreManager) SavePasskey(name string, cred *PasskeyCredential, password string) (string, error) {
	return km.Save(name, KeyKindPasskey, cred.PrivateKeyBytes(), password)
}

// SaveFeePayer 加密保存费用支付方种子
func (km *KeystoreManager) SaveFeePayer(name string, payer *FeePayer, password string) (string, error) {
	return km.Save(name, KeyKindFeePayer, payer.Seed(), password)
}

// LoadPasskey 加载通行密钥
func (km *KeystoreManager) LoadPasskey(name, password string) (*PasskeyCredential, error) {
	raw, err := km.loadKind(name, KeyKindPasskey, password)
	if err != nil {
		return nil, err
	}
	return NewPasskeyCredentialFromBytes(raw)
}

// LoadFeePayer 加载费用支付方
func (km *KeystoreManager) LoadFeePayer(name, password string) (*FeePayer, error) {
	raw, err := km.loadKind(name, KeyKindFeePayer, password)
	if err != nil {
		return nil, err
	}
	return NewFeePayerFromSeed(raw)
}

// Save 保存私钥材料到Keystore
func (km *KeystoreManager) Save(name string, kind KeyKind, secret []byte, password string) (string, error) {
	// 1. 生成随机salt和IV
	salt := make([]byte, 32)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	// 2. 派生密钥
	key := deriveKey(password, salt, km.iterations)

	// 3. 加密（前 16 字节作为 AES-128 密钥，后 16 字节用于 MAC）
	ciphertext, err := encryptAES(key[:16], secret, iv)
	if err != nil {
		return "", fmt.Errorf("encrypt private key: %w", err)
	}

	keystore := &Keystore{
		Version: 1,
		ID:      uuid.New().String(),
		Name:    name,
		Kind:    kind,
		Crypto: Crypto{
			Cipher:       "aes-128-ctr",
			CipherText:   hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{IV: hex.EncodeToString(iv)},
			KDF:          "pbkdf2",
			KDFParams: KDFParams{
				Iterations: km.iterations,
				DKLen:      32,
				PRF:        "hmac-sha256",
				Salt:       hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(computeMAC(key[16:], ciphertext)),
		},
	}

	data, err := json.MarshalIndent(keystore, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode keystore: %w", err)
	}

	keystorePath := km.path(name)
	if err := os.WriteFile(keystorePath, data, 0600); err != nil {
		return "", fmt.Errorf("write keystore file: %w", err)
	}
	return keystorePath, nil
}

// Load 从Keystore加载私钥材料
func (km *KeystoreManager) Load(name, password string) (KeyKind, []byte, error) {
	data, err := os.ReadFile(km.path(name))
	if err != nil {
		return "", nil, fmt.Errorf("read keystore file: %w", err)
	}

	var keystore Keystore
	if err := json.Unmarshal(data, &keystore); err != nil {
		return "", nil, fmt.Errorf("parse keystore: %w", err)
	}
	if keystore.Crypto.KDF != "pbkdf2" || keystore.Crypto.KDFParams.Iterations <= 0 {
		return "", nil, fmt.Errorf("unsupported kdf %q", keystore.Crypto.KDF)
	}

	salt, err := hex.DecodeString(keystore.Crypto.KDFParams.Salt)
	if err != nil {
		return "", nil, fmt.Errorf("decode salt: %w", err)
	}
	iv, err := hex.DecodeString(keystore.Crypto.CipherParams.IV)
	if err != nil {
		return "", nil, fmt.Errorf("decode iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(keystore.Crypto.CipherText)
	if err != nil {
		return "", nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	actualMAC, err := hex.DecodeString(keystore.Crypto.MAC)
	if err != nil {
		return "", nil, fmt.Errorf("decode mac: %w", err)
	}

	key := deriveKey(password, salt, keystore.Crypto.KDFParams.Iterations)
	if subtle.ConstantTimeCompare(computeMAC(key[16:], ciphertext), actualMAC) != 1 {
		return "", nil, fmt.Errorf("invalid password")
	}

	secret, err := decryptAES(key[:16], ciphertext, iv)
	if err != nil {
		return "", nil, fmt.Errorf("decrypt private key: %w", err)
	}
	return keystore.Kind, secret, nil
}

func (km *KeystoreManager) loadKind(name string, want KeyKind, password string) ([]byte, error) {
	kind, raw, err := km.Load(name, password)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, fmt.Errorf("keystore %q holds %s, expected %s", name, kind, want)
	}
	return raw, nil
}

func (km *KeystoreManager) path(name string) string {
	return filepath.Join(km.keystoreDir, name+".json")
}

// deriveKey PBKDF2-HMAC-SHA256
func deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)
}

// encryptAES AES-CTR 加密
func encryptAES(key, plaintext, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	stream := cipher.NewCTR(block, iv)
	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)
	return ciphertext, nil
}

// decryptAES CTR 模式对称
func decryptAES(key, ciphertext, iv []byte) ([]byte, error) {
	return encryptAES(key, ciphertext, iv)
}

// computeMAC sha256(macKey ++ ciphertext)
func computeMAC(macKey, ciphertext []byte) []byte {
	h := sha256.New()
	h.Write(macKey)
	h.Write(ciphertext)
	return h.Sum(nil)
}
