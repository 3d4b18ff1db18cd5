// Package linalg はgomachineの各モデルが使う行列ユーティリティを提供します。
//
// データ行列は gonum の mat.Matrix で表現し、行がサンプル、列が特徴量です。
// BLAS/LAPACK は gonum を通じて利用し、他の線形代数ライブラリは使いません。
//
// Mul は出力行列を再帰的に二分割し、各ブロックを goroutine で並列に計算する
// 分割統治型の行列積です。葉のブロックは gonum の BLAS 実装で計算します。
package linalg
