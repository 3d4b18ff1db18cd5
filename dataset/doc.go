// Package dataset はCSVの読み込み、学習/テスト分割、
// メモリマップされたバイナリ行列形式（.gmx）を提供します。
//
// .gmx のレイアウト:
//
//	offset 0   magic "GMXMAT01"
//	offset 8   rows  uint64 (little endian)
//	offset 16  cols  uint64 (little endian)
//	offset 24  rows×cols float64 (little endian, 行優先)
package dataset
